package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"

	"github.com/JonMunkholm/crm/internal/core"
)

// accountRow is one line of an account directory file. The id column is
// optional; blank ids get a stable UUID from the owner and the name.
type accountRow struct {
	ID   string `csv:"id,omitempty"`
	Name string `csv:"name"`
}

// accountNamespace seeds name-based ids for accounts without one.
var accountNamespace = uuid.MustParse("6f1c7a52-3b0e-4c59-9f2e-8d6b1d9f4a10")

// ReadAccountsCSV decodes an account directory with an "id,name" header.
// Rows with a blank name are skipped.
func ReadAccountsCSV(r io.Reader, userID uuid.UUID) ([]core.Account, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	text, err := core.DecodeText(data)
	if err != nil {
		return nil, err
	}

	var rows []accountRow
	if err := csvutil.Unmarshal([]byte(text), &rows); err != nil {
		return nil, fmt.Errorf("decode accounts file: %w", err)
	}

	accounts := make([]core.Account, 0, len(rows))
	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		id := AccountID(userID, name)
		if raw := strings.TrimSpace(row.ID); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("accounts file line %d: invalid id %q: %w", i+2, raw, err)
			}
			id = parsed
		}
		accounts = append(accounts, core.Account{ID: id, Name: name})
	}
	return accounts, nil
}

// AccountID is the generated id of an account without one. Two users loading
// the same name get different ids; letter case does not matter.
func AccountID(userID uuid.UUID, name string) uuid.UUID {
	key := userID.String() + "\x00" + strings.ToLower(strings.TrimSpace(name))
	return uuid.NewSHA1(accountNamespace, []byte(key))
}

// WriteAccountsCSV encodes accounts in the format ReadAccountsCSV reads.
func WriteAccountsCSV(w io.Writer, accounts []core.Account) error {
	rows := make([]accountRow, len(accounts))
	for i, a := range accounts {
		rows[i] = accountRow{ID: a.ID.String(), Name: a.Name}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// StaticAccounts is an in-memory account directory shared by every user.
type StaticAccounts []core.Account

// AccountDirectory implements core.AccountResolver.
func (s StaticAccounts) AccountDirectory(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	return s, nil
}
