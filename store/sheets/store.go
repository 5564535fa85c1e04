// Package sheets implements store.Store on a Google Sheets spreadsheet.
//
// Each entity lives on its own tab with a header row. The substrate has no
// transactions: every method is one ranged read or one keyed write, and
// positional updates re-resolve their target row by key immediately before
// writing so an interleaved append cannot shift the write onto another row.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	invite "github.com/davemagnier/youmio-invite"
	"github.com/davemagnier/youmio-invite/allowlist"
	"github.com/davemagnier/youmio-invite/claim"
	"github.com/davemagnier/youmio-invite/code"
	"github.com/davemagnier/youmio-invite/conversion"
	ledgerstore "github.com/davemagnier/youmio-invite/store"
	"github.com/davemagnier/youmio-invite/wallet"
)

// Tab ranges. Data rows start at 2; row 1 is the header.
const (
	rangeAllowlist   = "Allowlist!A:B"
	rangeInviteCodes = "InviteCodes!A:F"
	rangeClaims      = "ClaimedInvites!A:E"
	rangeConversions = "Conversions!A:J"
)

const (
	callTimeout  = 10 * time.Second
	maxReadTries = 3
)

var _ ledgerstore.Store = (*Store)(nil)

// Store is a Google Sheets-backed store.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store for spreadsheetID authenticated with the given service
// account credentials JSON.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte, opts ...Option) (*Store, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	s := &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ──────────────────────────────────────────────────
// Allowlist
// ──────────────────────────────────────────────────

func (s *Store) GetAllowlistEntry(ctx context.Context, walletAddr string) (*allowlist.Entry, error) {
	_, entry, err := s.findAllowlistRow(ctx, walletAddr)
	return entry, err
}

func (s *Store) ListAllowlist(ctx context.Context) ([]*allowlist.Entry, error) {
	rows, err := s.readRows(ctx, rangeAllowlist)
	if err != nil {
		return nil, err
	}
	out := make([]*allowlist.Entry, 0, len(rows))
	for _, row := range rows {
		if e := rowToEntry(row); e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpdateInvitesRemaining(ctx context.Context, walletAddr string, remaining int) error {
	rowIdx, _, err := s.findAllowlistRow(ctx, walletAddr)
	if err != nil {
		return err
	}
	target := fmt.Sprintf("Allowlist!B%d", rowIdx)
	return s.updateRange(ctx, target, [][]interface{}{{strconv.Itoa(remaining)}})
}

// findAllowlistRow returns the 1-based sheet row and parsed entry for
// walletAddr.
func (s *Store) findAllowlistRow(ctx context.Context, walletAddr string) (int, *allowlist.Entry, error) {
	rows, err := s.readRows(ctx, rangeAllowlist)
	if err != nil {
		return 0, nil, err
	}
	for i, row := range rows {
		e := rowToEntry(row)
		if e == nil {
			continue
		}
		if wallet.Equal(e.Wallet, walletAddr) {
			return i + 2, e, nil
		}
	}
	return 0, nil, invite.ErrNotFound
}

// ──────────────────────────────────────────────────
// Invite codes
// ──────────────────────────────────────────────────

func (s *Store) AppendInviteCode(ctx context.Context, c *code.InviteCode) error {
	return s.appendRow(ctx, rangeInviteCodes, codeToRow(c))
}

func (s *Store) GetInviteCode(ctx context.Context, codeValue string) (*code.InviteCode, error) {
	_, c, err := s.findCodeRow(ctx, codeValue)
	return c, err
}

func (s *Store) ListInviteCodes(ctx context.Context) ([]*code.InviteCode, error) {
	rows, err := s.readRows(ctx, rangeInviteCodes)
	if err != nil {
		return nil, err
	}
	out := make([]*code.InviteCode, 0, len(rows))
	for _, row := range rows {
		if c := rowToCode(row); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListInviteCodesByInviter(ctx context.Context, inviterWallet string) ([]*code.InviteCode, error) {
	all, err := s.ListInviteCodes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*code.InviteCode, 0, len(all))
	for _, c := range all {
		if wallet.Equal(c.InviterWallet, inviterWallet) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) MarkInviteCodeUsed(ctx context.Context, codeValue, inviteeWallet string, usedAt time.Time) error {
	// Resolve the row immediately before the write; an append landing
	// between read and write cannot shift existing rows, only extend them.
	rowIdx, c, err := s.findCodeRow(ctx, codeValue)
	if err != nil {
		return err
	}
	if c.Used {
		return invite.ErrCodeAlreadyUsed
	}

	target := fmt.Sprintf("InviteCodes!D%d:F%d", rowIdx, rowIdx)
	return s.updateRange(ctx, target, [][]interface{}{{
		"TRUE",
		wallet.Normalize(inviteeWallet),
		usedAt.UTC().Format(time.RFC3339),
	}})
}

func (s *Store) findCodeRow(ctx context.Context, codeValue string) (int, *code.InviteCode, error) {
	rows, err := s.readRows(ctx, rangeInviteCodes)
	if err != nil {
		return 0, nil, err
	}
	for i, row := range rows {
		c := rowToCode(row)
		if c == nil {
			continue
		}
		// Codes are case-sensitive; the alphabet is mixed-case.
		if c.Code == codeValue {
			return i + 2, c, nil
		}
	}
	return 0, nil, invite.ErrNotFound
}

// ──────────────────────────────────────────────────
// Claims
// ──────────────────────────────────────────────────

func (s *Store) AppendClaim(ctx context.Context, c *claim.Claim) error {
	return s.appendRow(ctx, rangeClaims, claimToRow(c))
}

func (s *Store) GetClaimByInvitee(ctx context.Context, inviteeWallet string) (*claim.Claim, error) {
	_, c, err := s.findClaimRow(ctx, inviteeWallet)
	return c, err
}

func (s *Store) ListClaims(ctx context.Context) ([]*claim.Claim, error) {
	rows, err := s.readRows(ctx, rangeClaims)
	if err != nil {
		return nil, err
	}
	out := make([]*claim.Claim, 0, len(rows))
	for _, row := range rows {
		if c := rowToClaim(row); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListUnsyncedClaims(ctx context.Context) ([]*claim.Claim, error) {
	all, err := s.ListClaims(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*claim.Claim, 0, len(all))
	for _, c := range all {
		if !c.Synced() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) MarkClaimSynced(ctx context.Context, inviteeWallet string, status claim.SyncStatus) error {
	rowIdx, _, err := s.findClaimRow(ctx, inviteeWallet)
	if err != nil {
		return err
	}
	target := fmt.Sprintf("ClaimedInvites!E%d", rowIdx)
	return s.updateRange(ctx, target, [][]interface{}{{string(status)}})
}

func (s *Store) findClaimRow(ctx context.Context, inviteeWallet string) (int, *claim.Claim, error) {
	rows, err := s.readRows(ctx, rangeClaims)
	if err != nil {
		return 0, nil, err
	}
	for i, row := range rows {
		c := rowToClaim(row)
		if c == nil {
			continue
		}
		if wallet.Equal(c.InviteeWallet, inviteeWallet) {
			return i + 2, c, nil
		}
	}
	return 0, nil, invite.ErrNotFound
}

// ──────────────────────────────────────────────────
// Conversions
// ──────────────────────────────────────────────────

func (s *Store) AppendConversion(ctx context.Context, c *conversion.Conversion) error {
	return s.appendRow(ctx, rangeConversions, conversionToRow(c))
}

func (s *Store) ListConversions(ctx context.Context) ([]*conversion.Conversion, error) {
	rows, err := s.readRows(ctx, rangeConversions)
	if err != nil {
		return nil, err
	}
	out := make([]*conversion.Conversion, 0, len(rows))
	for _, row := range rows {
		if c := rowToConversion(row); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

// Ping reads the spreadsheet metadata to verify credentials and reachability.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: ping: %w", err)
	}
	return nil
}

// Close is a no-op; the API client holds no long-lived resources.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Sheet plumbing
// ──────────────────────────────────────────────────

// readRows fetches a tab range and strips the header row. Reads are
// idempotent, so transient API errors are retried.
func (s *Store) readRows(ctx context.Context, readRange string) ([][]interface{}, error) {
	op := func() (*sheets.ValueRange, error) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		return s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(callCtx).Do()
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxReadTries),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: read %s: %w", readRange, err)
	}

	if len(resp.Values) <= 1 {
		return nil, nil
	}
	return resp.Values[1:], nil
}

// appendRow appends one row after the current end of the tab. Appends are
// not idempotent and are never retried.
func (s *Store) appendRow(ctx context.Context, tabRange string, row []interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, tabRange, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append %s: %w", tabRange, err)
	}
	return nil
}

func (s *Store) updateRange(ctx context.Context, target string, values [][]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, target, &sheets.ValueRange{
		Values: values,
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s: %w", target, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Row (de)serialization
// ──────────────────────────────────────────────────

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	v, ok := row[idx].(string)
	if !ok {
		return fmt.Sprintf("%v", row[idx])
	}
	return strings.TrimSpace(v)
}

// cellInt parses an integer cell. Unparseable quota cells read as zero, so a
// corrupted row denies invites rather than granting them.
func cellInt(row []interface{}, idx int) int {
	n, err := strconv.Atoi(cell(row, idx))
	if err != nil {
		return 0
	}
	return n
}

func cellInt64(row []interface{}, idx int) int64 {
	n, err := strconv.ParseInt(cell(row, idx), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func cellBool(row []interface{}, idx int) bool {
	return strings.EqualFold(cell(row, idx), "TRUE")
}

func cellTime(row []interface{}, idx int) time.Time {
	t, err := time.Parse(time.RFC3339, cell(row, idx))
	if err != nil {
		return time.Time{}
	}
	return t
}

func rowToEntry(row []interface{}) *allowlist.Entry {
	w := cell(row, 0)
	if w == "" {
		return nil
	}
	return &allowlist.Entry{
		Wallet:           wallet.Normalize(w),
		InvitesRemaining: cellInt(row, 1),
	}
}

func codeToRow(c *code.InviteCode) []interface{} {
	used := "FALSE"
	if c.Used {
		used = "TRUE"
	}
	usedAt := ""
	if c.UsedAt != nil {
		usedAt = c.UsedAt.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		c.Code,
		wallet.Normalize(c.InviterWallet),
		c.CreatedAt.UTC().Format(time.RFC3339),
		used,
		wallet.Normalize(c.InviteeWallet),
		usedAt,
	}
}

func rowToCode(row []interface{}) *code.InviteCode {
	v := cell(row, 0)
	if v == "" {
		return nil
	}
	c := &code.InviteCode{
		Code:          v,
		InviterWallet: wallet.Normalize(cell(row, 1)),
		CreatedAt:     cellTime(row, 2),
		Used:          cellBool(row, 3),
		InviteeWallet: wallet.Normalize(cell(row, 4)),
	}
	if t := cellTime(row, 5); !t.IsZero() {
		c.UsedAt = &t
	}
	return c
}

func claimToRow(c *claim.Claim) []interface{} {
	return []interface{}{
		wallet.Normalize(c.InviteeWallet),
		wallet.Normalize(c.InviterWallet),
		c.ClaimedAt.UTC().Format(time.RFC3339),
		c.Code,
		string(c.SyncStatus),
	}
}

func rowToClaim(row []interface{}) *claim.Claim {
	w := cell(row, 0)
	if w == "" {
		return nil
	}
	return &claim.Claim{
		InviteeWallet: wallet.Normalize(w),
		InviterWallet: wallet.Normalize(cell(row, 1)),
		ClaimedAt:     cellTime(row, 2),
		Code:          cell(row, 3),
		SyncStatus:    claim.ParseSyncStatus(cell(row, 4)),
	}
}

func conversionToRow(c *conversion.Conversion) []interface{} {
	return []interface{}{
		wallet.Normalize(c.SubscriberWallet),
		c.Username,
		c.Email,
		string(c.Tier),
		c.Timestamp.UTC().Format(time.RFC3339),
		c.Source,
		wallet.Normalize(c.InviterWallet),
		c.InviterUsername,
		strconv.FormatInt(c.StarsBonus, 10),
		string(c.PayoutStatus),
	}
}

func rowToConversion(row []interface{}) *conversion.Conversion {
	w := cell(row, 0)
	if w == "" {
		return nil
	}
	return &conversion.Conversion{
		SubscriberWallet: wallet.Normalize(w),
		Username:         cell(row, 1),
		Email:            cell(row, 2),
		Tier:             conversion.Tier(cell(row, 3)),
		Timestamp:        cellTime(row, 4),
		Source:           cell(row, 5),
		InviterWallet:    wallet.Normalize(cell(row, 6)),
		InviterUsername:  cell(row, 7),
		StarsBonus:       cellInt64(row, 8),
		PayoutStatus:     conversion.PayoutStatus(cell(row, 9)),
	}
}
