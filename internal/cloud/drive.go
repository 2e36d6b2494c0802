package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"vault/internal/snapshot"
)

// Drive stores the snapshot in the signed-in user's Google Drive, using the
// user's OAuth access token for every call.
type Drive struct {
	// extra client options, used by tests to point at a fake endpoint.
	options []option.ClientOption
	now     func() time.Time
}

func NewDrive(opts ...option.ClientOption) *Drive {
	return &Drive{options: opts, now: time.Now}
}

func (d *Drive) Name() string { return BackendDrive }

func (d *Drive) service(ctx context.Context, token string) (*drive.Service, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(src)}, d.options...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// find returns the id of the snapshot file, empty when absent.
func (d *Drive) find(ctx context.Context, svc *drive.Service) (string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", snapshot.CloudFileName)
	list, err := svc.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list drive files: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (d *Drive) Upload(ctx context.Context, token string, data []byte) (time.Time, error) {
	svc, err := d.service(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	id, err := d.find(ctx, svc)
	if err != nil {
		return time.Time{}, err
	}

	media := bytes.NewReader(data)
	if id != "" {
		_, err = svc.Files.Update(id, &drive.File{}).
			Media(media, googleapi.ContentType("application/json")).
			Context(ctx).Do()
	} else {
		meta := &drive.File{Name: snapshot.CloudFileName, MimeType: "application/json"}
		_, err = svc.Files.Create(meta).
			Media(media, googleapi.ContentType("application/json")).
			Fields("id").
			Context(ctx).Do()
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("write drive file: %w", err)
	}
	return d.now().UTC(), nil
}

func (d *Drive) Download(ctx context.Context, token string) ([]byte, bool, error) {
	svc, err := d.service(ctx, token)
	if err != nil {
		return nil, false, err
	}
	id, err := d.find(ctx, svc)
	if err != nil || id == "" {
		return nil, false, err
	}

	resp, err := svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("download drive file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read drive file: %w", err)
	}
	return data, true, nil
}
