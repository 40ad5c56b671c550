package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// sqlStore is the database/sql ledger shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound per driver.
type sqlStore struct {
	db     *sql.DB
	logger *slog.Logger
	rebind func(string) string

	// single writer: every Update is serialized
	mu sync.Mutex
}

func newSQLStore(db *sql.DB, logger *slog.Logger, rebind func(string) string) *sqlStore {
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	return &sqlStore{db: db, logger: logger, rebind: rebind}
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
	CREATE TABLE IF NOT EXISTS market_state (
		address TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		nft TEXT NOT NULL,
		fee_percent INTEGER NOT NULL,
		collectable_fees TEXT NOT NULL,
		balance TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS collection_state (
		address TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		paused INTEGER NOT NULL,
		token_uri TEXT NOT NULL,
		title_search_uri TEXT NOT NULL,
		marketplace TEXT NOT NULL,
		oracle TEXT NOT NULL,
		link_token TEXT NOT NULL,
		oracle_fee TEXT NOT NULL,
		job_id TEXT NOT NULL,
		request_nonce BIGINT NOT NULL,
		next_deed_id BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS listings (
		id BIGINT PRIMARY KEY,
		token_id BIGINT NOT NULL,
		seller TEXT NOT NULL,
		buyer TEXT NOT NULL,
		price TEXT NOT NULL,
		state INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS titles (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		fractionalization BIGINT NOT NULL,
		deeds_left BIGINT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS title_requests (
		id TEXT PRIMARY KEY,
		title_id TEXT NOT NULL,
		requester TEXT NOT NULL,
		url TEXT NOT NULL,
		payment TEXT NOT NULL,
		status TEXT NOT NULL,
		owner TEXT NOT NULL,
		fractionalization BIGINT NOT NULL,
		verified INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		fulfilled_at TEXT
	);

	CREATE TABLE IF NOT EXISTS deeds (
		id BIGINT PRIMARY KEY,
		title_id TEXT NOT NULL REFERENCES titles(id),
		owner TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS authorized_wallets (
		address TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS operator_approvals (
		owner TEXT NOT NULL,
		operator TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (owner, operator)
	);

	CREATE TABLE IF NOT EXISTS accounts (
		address TEXT PRIMARY KEY,
		balance TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_used_at TEXT,
		revoked_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_title_requests_status ON title_requests(status);
	CREATE INDEX IF NOT EXISTS idx_deeds_title ON deeds(title_id);
	CREATE INDEX IF NOT EXISTS idx_deeds_owner ON deeds(owner);
`

// Migrate runs database migrations and seeds the sentinel listing 0
func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}

	zero := common.Address{}.Hex()
	ts := now()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO listings (id, token_id, seller, buyer, price, state, created_at, updated_at)
		VALUES (0, 0, ?, ?, '0', 0, ?, ?)
		ON CONFLICT (id) DO NOTHING`), zero, zero, ts, ts)
	if err != nil {
		return fmt.Errorf("seeding sentinel listing: %w", err)
	}
	return nil
}

// Update runs fn in a write transaction under the single-writer lock
func (s *sqlStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, fn)
}

// View runs fn in a transaction without taking the writer lock
func (s *sqlStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, fn)
}

func (s *sqlStore) run(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqlTx{tx: tx, rebind: s.rebind}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CreateAPIKey creates a new API key bound to address
func (s *sqlStore) CreateAPIKey(ctx context.Context, name string, address common.Address) (string, error) {
	key := generateAPIKey()
	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO api_keys (id, key_hash, name, address, created_at) VALUES (?, ?, ?, ?, ?)"),
		generateID(), hashAPIKey(key), name, address.Hex(), now())
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *sqlStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var ak APIKey
	var addr string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT id, key_hash, name, address, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL"), hashAPIKey(key)).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &addr, &ak.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.Address = common.HexToAddress(addr)

	// Update last used
	_, _ = s.db.ExecContext(ctx, s.rebind("UPDATE api_keys SET last_used_at = ? WHERE id = ?"), now(), ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all active API keys
func (s *sqlStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, address, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var addr string
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &addr, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		k.Address = common.HexToAddress(addr)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *sqlStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL"), now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// sqlTx implements Tx on a database transaction
type sqlTx struct {
	tx     *sql.Tx
	rebind func(string) string
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.rebind(query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.rebind(query), args...)
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.rebind(query), args...)
}

// Savepoint runs fn under a named savepoint. On failure the savepoint is
// rolled back, which also clears an aborted Postgres transaction.
func (t *sqlTx) Savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint %s: %w", name, rbErr))
		}
		return err
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// GetMarket returns the marketplace state
func (t *sqlTx) GetMarket(ctx context.Context) (*MarketState, error) {
	var m MarketState
	var addr, owner, nft, fees, balance string
	var feePercent int64
	err := t.queryRow(ctx, "SELECT address, owner, nft, fee_percent, collectable_fees, balance FROM market_state LIMIT 1").Scan(
		&addr, &owner, &nft, &feePercent, &fees, &balance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Address = common.HexToAddress(addr)
	m.Owner = common.HexToAddress(owner)
	m.NFT = common.HexToAddress(nft)
	m.FeePercent = uint64(feePercent)
	if m.CollectableFees, err = parseBig(fees); err != nil {
		return nil, err
	}
	if m.Balance, err = parseBig(balance); err != nil {
		return nil, err
	}
	return &m, nil
}

// PutMarket creates or replaces the marketplace state
func (t *sqlTx) PutMarket(ctx context.Context, m *MarketState) error {
	_, err := t.exec(ctx, `
		INSERT INTO market_state (address, owner, nft, fee_percent, collectable_fees, balance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			owner = excluded.owner,
			nft = excluded.nft,
			fee_percent = excluded.fee_percent,
			collectable_fees = excluded.collectable_fees,
			balance = excluded.balance`,
		m.Address.Hex(), m.Owner.Hex(), m.NFT.Hex(), int64(m.FeePercent), formatBig(m.CollectableFees), formatBig(m.Balance),
	)
	return err
}

// LastListingID returns the highest listing id; 0 when only the sentinel exists
func (t *sqlTx) LastListingID(ctx context.Context) (uint64, error) {
	var last int64
	if err := t.queryRow(ctx, "SELECT COALESCE(MAX(id), 0) FROM listings").Scan(&last); err != nil {
		return 0, err
	}
	return uint64(last), nil
}

// CreateListing appends a listing and assigns its id
func (t *sqlTx) CreateListing(ctx context.Context, l *Listing) error {
	last, err := t.LastListingID(ctx)
	if err != nil {
		return err
	}
	l.ID = last + 1
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	_, err = t.exec(ctx, `
		INSERT INTO listings (id, token_id, seller, buyer, price, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(l.ID), int64(l.TokenID), l.Seller.Hex(), l.Buyer.Hex(), formatBig(l.Price), l.State, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

const listingColumns = "id, token_id, seller, buyer, price, state, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var l Listing
	var id, tokenID int64
	var seller, buyer, price string
	if err := row.Scan(&id, &tokenID, &seller, &buyer, &price, &l.State, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.ID = uint64(id)
	l.TokenID = uint64(tokenID)
	l.Seller = common.HexToAddress(seller)
	l.Buyer = common.HexToAddress(buyer)
	p, err := parseBig(price)
	if err != nil {
		return nil, err
	}
	l.Price = p
	return &l, nil
}

// GetListing returns a listing by id
func (t *sqlTx) GetListing(ctx context.Context, id uint64) (*Listing, error) {
	l, err := scanListing(t.queryRow(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = ?", int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// UpdateListing stores a listing's mutable fields
func (t *sqlTx) UpdateListing(ctx context.Context, l *Listing) error {
	l.UpdatedAt = now()
	res, err := t.exec(ctx, "UPDATE listings SET buyer = ?, state = ?, updated_at = ? WHERE id = ?",
		l.Buyer.Hex(), l.State, l.UpdatedAt, int64(l.ID))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListListings returns up to count listings starting at id start
func (t *sqlTx) ListListings(ctx context.Context, start uint64, count int) ([]Listing, error) {
	if start > math.MaxInt64 || count <= 0 {
		return []Listing{}, nil
	}
	rows, err := t.query(ctx, "SELECT "+listingColumns+" FROM listings WHERE id >= ? ORDER BY id LIMIT ?", int64(start), count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// GetCollection returns the collection state
func (t *sqlTx) GetCollection(ctx context.Context) (*CollectionState, error) {
	var c CollectionState
	var addr, owner, marketplace, oracle, link, fee string
	var paused int
	var nonce, nextDeed int64
	err := t.queryRow(ctx, `
		SELECT address, owner, name, symbol, paused, token_uri, title_search_uri, marketplace,
			oracle, link_token, oracle_fee, job_id, request_nonce, next_deed_id
		FROM collection_state LIMIT 1`).Scan(
		&addr, &owner, &c.Name, &c.Symbol, &paused, &c.TokenURI, &c.TitleSearchURI, &marketplace,
		&oracle, &link, &fee, &c.JobID, &nonce, &nextDeed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Address = common.HexToAddress(addr)
	c.Owner = common.HexToAddress(owner)
	c.Paused = paused != 0
	c.Marketplace = common.HexToAddress(marketplace)
	c.Oracle = common.HexToAddress(oracle)
	c.LinkToken = common.HexToAddress(link)
	c.RequestNonce = uint64(nonce)
	c.NextDeedID = uint64(nextDeed)
	if c.OracleFee, err = parseBig(fee); err != nil {
		return nil, err
	}
	return &c, nil
}

// PutCollection creates or replaces the collection state
func (t *sqlTx) PutCollection(ctx context.Context, c *CollectionState) error {
	_, err := t.exec(ctx, `
		INSERT INTO collection_state (address, owner, name, symbol, paused, token_uri, title_search_uri,
			marketplace, oracle, link_token, oracle_fee, job_id, request_nonce, next_deed_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			owner = excluded.owner,
			paused = excluded.paused,
			token_uri = excluded.token_uri,
			title_search_uri = excluded.title_search_uri,
			marketplace = excluded.marketplace,
			oracle = excluded.oracle,
			link_token = excluded.link_token,
			oracle_fee = excluded.oracle_fee,
			job_id = excluded.job_id,
			request_nonce = excluded.request_nonce,
			next_deed_id = excluded.next_deed_id`,
		c.Address.Hex(), c.Owner.Hex(), c.Name, c.Symbol, boolToInt(c.Paused), c.TokenURI, c.TitleSearchURI,
		c.Marketplace.Hex(), c.Oracle.Hex(), c.LinkToken.Hex(), formatBig(c.OracleFee), c.JobID,
		int64(c.RequestNonce), int64(c.NextDeedID),
	)
	return err
}

const requestColumns = "id, title_id, requester, url, payment, status, owner, fractionalization, verified, created_at, fulfilled_at"

func scanRequest(row rowScanner) (*TitleRequest, error) {
	var r TitleRequest
	var requester, payment, owner string
	var fractionalization int64
	var verified int
	var fulfilledAt sql.NullString
	if err := row.Scan(&r.ID, &r.TitleID, &requester, &r.URL, &payment, &r.Status, &owner,
		&fractionalization, &verified, &r.CreatedAt, &fulfilledAt); err != nil {
		return nil, err
	}
	r.Requester = common.HexToAddress(requester)
	r.Owner = common.HexToAddress(owner)
	r.Fractionalization = uint64(fractionalization)
	r.Verified = verified != 0
	if fulfilledAt.Valid {
		r.FulfilledAt = fulfilledAt.String
	}
	p, err := parseBig(payment)
	if err != nil {
		return nil, err
	}
	r.Payment = p
	return &r, nil
}

// CreateTitleRequest records a new pending request
func (t *sqlTx) CreateTitleRequest(ctx context.Context, r *TitleRequest) error {
	if _, err := t.GetTitleRequest(ctx, r.ID); err == nil {
		return fmt.Errorf("%w: request %s", ErrConflict, r.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	r.CreatedAt = now()
	_, err := t.exec(ctx, `
		INSERT INTO title_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		r.ID, r.TitleID, r.Requester.Hex(), r.URL, formatBig(r.Payment), r.Status, r.Owner.Hex(),
		int64(r.Fractionalization), boolToInt(r.Verified), r.CreatedAt,
	)
	return err
}

// GetTitleRequest returns a request by id
func (t *sqlTx) GetTitleRequest(ctx context.Context, id string) (*TitleRequest, error) {
	r, err := scanRequest(t.queryRow(ctx, "SELECT "+requestColumns+" FROM title_requests WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// UpdateTitleRequest stores the outcome of a request
func (t *sqlTx) UpdateTitleRequest(ctx context.Context, r *TitleRequest) error {
	var fulfilledAt any
	if r.FulfilledAt != "" {
		fulfilledAt = r.FulfilledAt
	}
	res, err := t.exec(ctx, `
		UPDATE title_requests SET status = ?, owner = ?, fractionalization = ?, verified = ?, fulfilled_at = ?
		WHERE id = ?`,
		r.Status, r.Owner.Hex(), int64(r.Fractionalization), boolToInt(r.Verified), fulfilledAt, r.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListTitleRequests lists requests, oldest first
func (t *sqlTx) ListTitleRequests(ctx context.Context, filter RequestFilter) ([]TitleRequest, error) {
	query := "SELECT " + requestColumns + " FROM title_requests WHERE 1=1"
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.TitleID != "" {
		query += " AND title_id = ?"
		args = append(args, filter.TitleID)
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []TitleRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// GetTitle returns a title with its minted deed ids
func (t *sqlTx) GetTitle(ctx context.Context, id string) (*Title, error) {
	var title Title
	var owner string
	var fractionalization, left int64
	err := t.queryRow(ctx, "SELECT id, owner, fractionalization, deeds_left, created_at, updated_at FROM titles WHERE id = ?", id).Scan(
		&title.ID, &owner, &fractionalization, &left, &title.CreatedAt, &title.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	title.Owner = common.HexToAddress(owner)
	title.Fractionalization = uint64(fractionalization)
	title.DeedsLeftToMint = uint64(left)

	rows, err := t.query(ctx, "SELECT id FROM deeds WHERE title_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	title.Deeds = []uint64{}
	for rows.Next() {
		var deedID int64
		if err := rows.Scan(&deedID); err != nil {
			return nil, err
		}
		title.Deeds = append(title.Deeds, uint64(deedID))
	}
	return &title, rows.Err()
}

// PutTitle creates or updates a title row. Deeds are stored separately.
func (t *sqlTx) PutTitle(ctx context.Context, title *Title) error {
	ts := now()
	if title.CreatedAt == "" {
		title.CreatedAt = ts
	}
	title.UpdatedAt = ts
	_, err := t.exec(ctx, `
		INSERT INTO titles (id, owner, fractionalization, deeds_left, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner = excluded.owner,
			fractionalization = excluded.fractionalization,
			deeds_left = excluded.deeds_left,
			updated_at = excluded.updated_at`,
		title.ID, title.Owner.Hex(), int64(title.Fractionalization), int64(title.DeedsLeftToMint), title.CreatedAt, title.UpdatedAt,
	)
	return err
}

// CreateDeed records a minted deed
func (t *sqlTx) CreateDeed(ctx context.Context, d *Deed) error {
	d.CreatedAt = now()
	_, err := t.exec(ctx, "INSERT INTO deeds (id, title_id, owner, created_at) VALUES (?, ?, ?, ?)",
		int64(d.ID), d.TitleID, d.Owner.Hex(), d.CreatedAt)
	return err
}

// GetDeed returns a deed by token id
func (t *sqlTx) GetDeed(ctx context.Context, id uint64) (*Deed, error) {
	var d Deed
	var deedID int64
	var owner string
	err := t.queryRow(ctx, "SELECT id, title_id, owner, created_at FROM deeds WHERE id = ?", int64(id)).Scan(
		&deedID, &d.TitleID, &owner, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.ID = uint64(deedID)
	d.Owner = common.HexToAddress(owner)
	return &d, nil
}

// SetDeedOwner moves a deed to a new owner
func (t *sqlTx) SetDeedOwner(ctx context.Context, id uint64, owner common.Address) error {
	res, err := t.exec(ctx, "UPDATE deeds SET owner = ? WHERE id = ?", owner.Hex(), int64(id))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AuthorizeWallet marks a wallet as allowed to hold titles
func (t *sqlTx) AuthorizeWallet(ctx context.Context, wallet common.Address) error {
	_, err := t.exec(ctx, "INSERT INTO authorized_wallets (address, created_at) VALUES (?, ?) ON CONFLICT (address) DO NOTHING",
		wallet.Hex(), now())
	return err
}

// RevokeWallet removes a wallet authorization
func (t *sqlTx) RevokeWallet(ctx context.Context, wallet common.Address) error {
	res, err := t.exec(ctx, "DELETE FROM authorized_wallets WHERE address = ?", wallet.Hex())
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// IsWalletAuthorized reports whether a wallet is authorized
func (t *sqlTx) IsWalletAuthorized(ctx context.Context, wallet common.Address) (bool, error) {
	var n int
	if err := t.queryRow(ctx, "SELECT COUNT(*) FROM authorized_wallets WHERE address = ?", wallet.Hex()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetApproval sets or clears an operator approval
func (t *sqlTx) SetApproval(ctx context.Context, owner, operator common.Address, approved bool) error {
	if !approved {
		_, err := t.exec(ctx, "DELETE FROM operator_approvals WHERE owner = ? AND operator = ?", owner.Hex(), operator.Hex())
		return err
	}
	_, err := t.exec(ctx, `
		INSERT INTO operator_approvals (owner, operator, created_at) VALUES (?, ?, ?)
		ON CONFLICT (owner, operator) DO NOTHING`,
		owner.Hex(), operator.Hex(), now())
	return err
}

// IsApproved reports whether operator may move owner's deeds
func (t *sqlTx) IsApproved(ctx context.Context, owner, operator common.Address) (bool, error) {
	var n int
	if err := t.queryRow(ctx, "SELECT COUNT(*) FROM operator_approvals WHERE owner = ? AND operator = ?",
		owner.Hex(), operator.Hex()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetBalance returns an account's native balance, zero when unknown
func (t *sqlTx) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance string
	err := t.queryRow(ctx, "SELECT balance FROM accounts WHERE address = ?", address.Hex()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(balance)
}

// SetBalance stores an account's native balance
func (t *sqlTx) SetBalance(ctx context.Context, address common.Address, amount *big.Int) error {
	_, err := t.exec(ctx, `
		INSERT INTO accounts (address, balance) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET balance = excluded.balance`,
		address.Hex(), formatBig(amount))
	return err
}
