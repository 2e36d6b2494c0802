package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const (
	// Well-known Azurite development account.
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// Azure stores the snapshot as a block blob. Plain http URLs are treated as
// Azurite and use the shared development key; anything else uses the
// default Azure credential chain.
type Azure struct {
	client    *azblob.Client
	container string
}

func NewAzure(serviceURL, container string) (*Azure, error) {
	if serviceURL == "" {
		return nil, errors.New("Azure blob service URL is required")
	}
	if container == "" {
		container = "vault"
	}

	var (
		client *azblob.Client
		err    error
	)
	if strings.HasPrefix(serviceURL, "http://") {
		slog.Info("Using Azurite shared key credentials for blob transport")
		cred, cerr := azblob.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if cerr != nil {
			return nil, fmt.Errorf("create shared key credential: %w", cerr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		var cred azcore.TokenCredential
		cred, err = azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &Azure{client: client, container: container}, nil
}

func (a *Azure) Name() string { return BackendAzure }

func (a *Azure) Upload(ctx context.Context, token string, data []byte) (time.Time, error) {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		slog.WarnContext(ctx, "Failed to create blob container", "container", a.container, "error", err)
	}

	resp, err := a.client.UploadBuffer(ctx, a.container, objectKey("", token), data, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("upload blob %s: %w", a.container, err)
	}
	if resp.LastModified != nil {
		return resp.LastModified.UTC(), nil
	}
	return time.Now().UTC(), nil
}

func (a *Azure) Download(ctx context.Context, token string) ([]byte, bool, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, objectKey("", token), nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("download blob %s: %w", a.container, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read blob content: %w", err)
	}
	return data, true, nil
}
