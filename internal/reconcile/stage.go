package reconcile

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"vault/internal/core"
	"vault/internal/ledger"
	"vault/internal/rules"
)

// nearDistance is the largest label edit distance reported as a possible
// duplicate when amount and date agree.
const nearDistance = 2

// Signature identifies an entry for duplicate detection.
type Signature struct {
	Amount int64  `json:"amount"`
	Label  string `json:"label"`
	Date   string `json:"date"`
}

// SignatureOf builds a signature from an amount, a merchant-or-note label
// and a date. The label is trimmed and lower-cased.
func SignatureOf(amount int64, label string, date core.Date) Signature {
	return Signature{
		Amount: amount,
		Label:  strings.ToLower(strings.TrimSpace(label)),
		Date:   date.String(),
	}
}

func ExpenseSignature(e core.Expense) Signature {
	return SignatureOf(e.Amount, e.Label(), e.Date)
}

func IncomeSignature(i core.Income) Signature {
	return SignatureOf(i.Amount, i.Note, i.Date)
}

// Entry is one staged candidate.
type Entry struct {
	Index     int        `json:"index"`
	EntryType EntryType  `json:"entryType"`
	Signature *Signature `json:"signature,omitempty"`

	Expense *core.Expense `json:"expense,omitempty"`
	Income  *core.Income  `json:"income,omitempty"`
	Account *core.Account `json:"account,omitempty"`

	IsDuplicate   bool     `json:"isDuplicate"`
	DuplicateOf   []string `json:"duplicateOf,omitempty"`
	NearDuplicate string   `json:"nearDuplicateOf,omitempty"`
	MatchedRuleID string   `json:"matchedRuleId,omitempty"`

	Err error `json:"-"`
}

// Valid reports whether the candidate could be typed.
func (e Entry) Valid() bool { return e.Err == nil }

// Reason is the rejection reason, empty for valid entries.
func (e Entry) Reason() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Staged is a typed batch ready for review.
type Staged struct {
	Entries    []Entry `json:"entries"`
	Rejected   int     `json:"rejected"`
	Duplicates int     `json:"duplicates"`
}

// Stage types every candidate and annotates it. Expenses are matched
// against rules; an expense no rule matches stays Uncategorized. Duplicates
// are flagged within the batch and against ledger entries of the same kind.
func Stage(cands []Candidate, snap core.Snapshot) Staged {
	out := Staged{Entries: make([]Entry, 0, len(cands))}

	for i, c := range cands {
		entry := Entry{Index: i, EntryType: c.entryType()}
		switch entry.EntryType {
		case EntryExpense:
			e, err := c.toExpense()
			if err != nil {
				entry.Err = err
				break
			}
			if r, ok := rules.MatchExpense(e, snap.Rules); ok {
				rules.Apply(&e, r)
				entry.MatchedRuleID = r.ID
			}
			sig := ExpenseSignature(e)
			entry.Expense = &e
			entry.Signature = &sig
		case EntryIncome:
			in, err := c.toIncome()
			if err != nil {
				entry.Err = err
				break
			}
			sig := IncomeSignature(in)
			entry.Income = &in
			entry.Signature = &sig
		case EntryAccount:
			a, err := c.toAccount()
			if err != nil {
				entry.Err = err
				break
			}
			entry.Account = &a
		}
		if entry.Err != nil {
			out.Rejected++
		}
		out.Entries = append(out.Entries, entry)
	}

	flagDuplicates(out.Entries, snap)
	for _, e := range out.Entries {
		if e.IsDuplicate {
			out.Duplicates++
		}
	}
	return out
}

type known struct {
	ref string
	sig Signature
}

func flagDuplicates(entries []Entry, snap core.Snapshot) {
	ledgerSigs := map[EntryType][]known{}
	for _, e := range snap.Expenses {
		ledgerSigs[EntryExpense] = append(ledgerSigs[EntryExpense], known{ref: e.ID, sig: ExpenseSignature(e)})
	}
	for _, i := range snap.Incomes {
		ledgerSigs[EntryIncome] = append(ledgerSigs[EntryIncome], known{ref: i.ID, sig: IncomeSignature(i)})
	}

	batch := map[EntryType]map[Signature][]int{}
	for i, e := range entries {
		if e.Signature == nil {
			continue
		}
		if batch[e.EntryType] == nil {
			batch[e.EntryType] = map[Signature][]int{}
		}
		batch[e.EntryType][*e.Signature] = append(batch[e.EntryType][*e.Signature], i)
	}

	for i := range entries {
		e := &entries[i]
		if e.Signature == nil {
			continue
		}
		for _, j := range batch[e.EntryType][*e.Signature] {
			if j != i {
				e.DuplicateOf = append(e.DuplicateOf, fmt.Sprintf("batch:%d", entries[j].Index))
			}
		}
		for _, k := range ledgerSigs[e.EntryType] {
			if k.sig == *e.Signature {
				e.DuplicateOf = append(e.DuplicateOf, k.ref)
			}
		}
		e.IsDuplicate = len(e.DuplicateOf) > 0
		if !e.IsDuplicate {
			e.NearDuplicate = nearest(*e.Signature, ledgerSigs[e.EntryType])
		}
	}
}

// nearest returns the ledger entry with the same amount and date whose label
// is within nearDistance edits, if any.
func nearest(sig Signature, candidates []known) string {
	if len(sig.Label) < 4 {
		return ""
	}
	best, bestDist := "", nearDistance+1
	for _, k := range candidates {
		if k.sig.Amount != sig.Amount || k.sig.Date != sig.Date {
			continue
		}
		if d := levenshtein.ComputeDistance(sig.Label, k.sig.Label); d < bestDist {
			best, bestDist = k.ref, d
		}
	}
	return best
}

// CommitOptions controls which staged entries are committed.
type CommitOptions struct {
	IncludeDuplicates bool
	// Exclude lists candidate indexes the reviewer removed.
	Exclude []int
}

// Batch turns the valid entries into an ingest command. It also returns how
// many entries were left out, rejected ones included.
func (s Staged) Batch(opts CommitOptions) (ledger.IngestBatch, int) {
	excluded := make(map[int]struct{}, len(opts.Exclude))
	for _, i := range opts.Exclude {
		excluded[i] = struct{}{}
	}
	var cmd ledger.IngestBatch
	left := 0
	for _, e := range s.Entries {
		if _, skip := excluded[e.Index]; skip || !e.Valid() || (e.IsDuplicate && !opts.IncludeDuplicates) {
			left++
			continue
		}
		switch {
		case e.Expense != nil:
			cmd.Expenses = append(cmd.Expenses, *e.Expense)
		case e.Income != nil:
			cmd.Incomes = append(cmd.Incomes, *e.Income)
		case e.Account != nil:
			cmd.Accounts = append(cmd.Accounts, *e.Account)
		}
	}
	return cmd, left
}
