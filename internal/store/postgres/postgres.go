// Package postgres is the reference Store implementation (spec.md §6):
// a pgx connection pool, goose-managed schema, and an Argon2id
// double-hash password scheme via internal/authkdf. Grounded on the
// teacher's internal/db.DB, generalized from account-only bookkeeping
// to the full social-graph/match-history/ban contract of
// internal/store.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tankwar/server/internal/authkdf"
	"github.com/tankwar/server/internal/matchmaker"
	"github.com/tankwar/server/internal/store"
	"github.com/tankwar/server/internal/wire"
)

// Store wraps a pgx connection pool implementing internal/store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to postgres at dsn and pings it before returning,
// mirroring the teacher's db.New.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool, e.g. for RunMigrations callers
// that already hold a Store.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

var _ store.Store = (*Store)(nil)

func (s *Store) Authenticate(ctx context.Context, creds store.Credentials, clientIP string) (*store.AuthenticatedUser, error) {
	var (
		id         uuid.UUID
		salt, key  []byte
		ranked2    int32
		casual3    int32
		casual5    int32
		casual2    int32
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, salt, password_key, elo_ranked2, elo_casual3, elo_casual5, elo_casual2
		 FROM users WHERE username = $1`, creds.Username,
	).Scan(&id, &salt, &key, &ranked2, &casual3, &casual5, &casual2)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", creds.Username, err)
	}

	var stored authkdf.Hash
	copy(stored.Salt[:], salt)
	copy(stored.Key[:], key)
	if !authkdf.Verify(creds.ClientHash, stored) {
		return nil, nil
	}

	return &store.AuthenticatedUser{
		UserID: id,
		Elo:    [store.NumModes]int32{ranked2, casual3, casual5, casual2},
	}, nil
}

func (s *Store) RegisterAccount(ctx context.Context, creds store.Credentials, clientIP string) (store.RegisterOutcome, *store.AuthenticatedUser, error) {
	if !wire.ValidUsername(creds.Username) {
		return store.RegisterInvalidUsername, nil, nil
	}

	h, err := authkdf.NewHash(creds.ClientHash)
	if err != nil {
		return 0, nil, fmt.Errorf("deriving registration hash: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, username, salt, password_key) VALUES ($1, $2, $3, $4)`,
		id, creds.Username, h.Salt[:], h.Key[:],
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.RegisterUsernameTaken, nil, nil
		}
		return 0, nil, fmt.Errorf("inserting user %q: %w", creds.Username, err)
	}

	return store.RegisterOK, &store.AuthenticatedUser{
		UserID: id,
		Elo:    [store.NumModes]int32{1000, 1000, 1000, 1000},
	}, nil
}

func (s *Store) ResolveUsername(ctx context.Context, username string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.UUID{}, false, nil
	}
	if err != nil {
		return uuid.UUID{}, false, fmt.Errorf("resolving username %q: %w", username, err)
	}
	return id, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

// RecordMatch appends one match_results row per player and, for ranked
// matches, folds the scaled-Elo delta into elo_ranked2 — all inside one
// transaction (spec's Open Question "Ranked elo updates").
func (s *Store) RecordMatch(ctx context.Context, rec store.MatchRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning match-record transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	placement := make(map[uuid.UUID]int, len(rec.Players))
	for rank, pid := range rec.EliminationOrder {
		// EliminationOrder lists players in elimination order, survivor
		// last; placement 0 is the best finish (the survivor).
		placement[rec.Players[pid]] = len(rec.EliminationOrder) - 1 - rank
	}

	var elos map[uuid.UUID]int32
	if rec.Ranked {
		elos = make(map[uuid.UUID]int32, len(rec.Players))
		rows, err := tx.Query(ctx,
			`SELECT id, elo_ranked2 FROM users WHERE id = ANY($1)`, rec.Players)
		if err != nil {
			return fmt.Errorf("loading elos for match %d: %w", rec.MatchID, err)
		}
		for rows.Next() {
			var id uuid.UUID
			var elo int32
			if err := rows.Scan(&id, &elo); err != nil {
				rows.Close()
				return fmt.Errorf("scanning elo row: %w", err)
			}
			elos[id] = elo
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("reading elo rows for match %d: %w", rec.MatchID, err)
		}
	}

	for _, playerID := range rec.Players {
		place := placement[playerID]
		var delta int32
		if rec.Ranked {
			opponentElos := make([]int32, 0, len(rec.Players)-1)
			for _, otherID := range rec.Players {
				if otherID != playerID {
					opponentElos = append(opponentElos, elos[otherID])
				}
			}
			delta = matchmaker.EloDelta(elos[playerID], opponentElos, place, len(rec.Players))
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO match_results (match_id, player_id, mode, placement, elo_delta, concluded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.MatchID, playerID, rec.Mode, place, delta, rec.ConcludedAt,
		); err != nil {
			return fmt.Errorf("inserting match_results row for %s: %w", playerID, err)
		}

		if rec.Ranked && delta != 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET elo_ranked2 = elo_ranked2 + $1 WHERE id = $2`,
				delta, playerID,
			); err != nil {
				return fmt.Errorf("updating elo for %s: %w", playerID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing match-record transaction: %w", err)
	}
	return nil
}

func (s *Store) BanUser(ctx context.Context, userID uuid.UUID, until time.Time, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_bans (user_id, until, reason) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET until = $2, reason = $3`,
		userID, until, reason,
	)
	if err != nil {
		return fmt.Errorf("banning user %s: %w", userID, err)
	}
	return nil
}

func (s *Store) UnbanUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_bans WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("unbanning user %s: %w", userID, err)
	}
	return nil
}

func (s *Store) BanIP(ctx context.Context, ip string, until time.Time, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ip_bans (ip, until, reason) VALUES ($1, $2, $3)
		 ON CONFLICT (ip) DO UPDATE SET until = $2, reason = $3`,
		ip, until, reason,
	)
	if err != nil {
		return fmt.Errorf("banning ip %s: %w", ip, err)
	}
	return nil
}

func (s *Store) UnbanIP(ctx context.Context, ip string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM ip_bans WHERE ip = $1`, ip)
	if err != nil {
		return fmt.Errorf("unbanning ip %s: %w", ip, err)
	}
	return nil
}

func (s *Store) LoadBans(ctx context.Context) (map[string]store.BanEntry, map[string]store.BanEntry, error) {
	users := make(map[string]store.BanEntry)
	urows, err := s.pool.Query(ctx, `SELECT u.username, b.until, b.reason FROM user_bans b JOIN users u ON u.id = b.user_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("loading user bans: %w", err)
	}
	for urows.Next() {
		var username string
		var e store.BanEntry
		if err := urows.Scan(&username, &e.Until, &e.Reason); err != nil {
			urows.Close()
			return nil, nil, fmt.Errorf("scanning user ban row: %w", err)
		}
		users[username] = e
	}
	urows.Close()
	if err := urows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading user ban rows: %w", err)
	}

	ips := make(map[string]store.BanEntry)
	irows, err := s.pool.Query(ctx, `SELECT ip, until, reason FROM ip_bans`)
	if err != nil {
		return nil, nil, fmt.Errorf("loading ip bans: %w", err)
	}
	for irows.Next() {
		var ip string
		var e store.BanEntry
		if err := irows.Scan(&ip, &e.Until, &e.Reason); err != nil {
			irows.Close()
			return nil, nil, fmt.Errorf("scanning ip ban row: %w", err)
		}
		ips[ip] = e
	}
	irows.Close()
	if err := irows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading ip ban rows: %w", err)
	}

	return users, ips, nil
}

func (s *Store) SendFriendRequest(ctx context.Context, from, to uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO friend_edges (requester_id, addressee_id, status) VALUES ($1, $2, 0)
		 ON CONFLICT (requester_id, addressee_id) DO NOTHING`,
		from, to,
	)
	if err != nil {
		return fmt.Errorf("sending friend request %s -> %s: %w", from, to, err)
	}
	return nil
}

func (s *Store) RespondFriendRequest(ctx context.Context, userID, from uuid.UUID, accept bool) error {
	if accept {
		_, err := s.pool.Exec(ctx,
			`UPDATE friend_edges SET status = 1 WHERE requester_id = $1 AND addressee_id = $2`,
			from, userID,
		)
		if err != nil {
			return fmt.Errorf("accepting friend request %s -> %s: %w", from, userID, err)
		}
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM friend_edges WHERE requester_id = $1 AND addressee_id = $2`,
		from, userID,
	)
	if err != nil {
		return fmt.Errorf("declining friend request %s -> %s: %w", from, userID, err)
	}
	return nil
}

func (s *Store) RemoveFriend(ctx context.Context, userID, friend uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM friend_edges
		 WHERE (requester_id = $1 AND addressee_id = $2) OR (requester_id = $2 AND addressee_id = $1)`,
		userID, friend,
	)
	if err != nil {
		return fmt.Errorf("removing friendship %s/%s: %w", userID, friend, err)
	}
	return nil
}

func (s *Store) BlockUser(ctx context.Context, userID, target uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO blocks (user_id, target_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, target,
	)
	if err != nil {
		return fmt.Errorf("blocking %s for %s: %w", target, userID, err)
	}
	return nil
}

func (s *Store) UnblockUser(ctx context.Context, userID, target uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM blocks WHERE user_id = $1 AND target_id = $2`, userID, target)
	if err != nil {
		return fmt.Errorf("unblocking %s for %s: %w", target, userID, err)
	}
	return nil
}

func (s *Store) fetchUserEntries(ctx context.Context, query string, args ...any) ([]wire.UserEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wire.UserEntry
	for rows.Next() {
		var e wire.UserEntry
		if err := rows.Scan(&e.ID, &e.Username); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) FetchFriends(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error) {
	entries, err := s.fetchUserEntries(ctx,
		`SELECT u.id, u.username FROM friend_edges f
		 JOIN users u ON u.id = CASE WHEN f.requester_id = $1 THEN f.addressee_id ELSE f.requester_id END
		 WHERE (f.requester_id = $1 OR f.addressee_id = $1) AND f.status = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching friends for %s: %w", userID, err)
	}
	return entries, nil
}

func (s *Store) FetchFriendRequests(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error) {
	entries, err := s.fetchUserEntries(ctx,
		`SELECT u.id, u.username FROM friend_edges f JOIN users u ON u.id = f.requester_id
		 WHERE f.addressee_id = $1 AND f.status = 0`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching friend requests for %s: %w", userID, err)
	}
	return entries, nil
}

func (s *Store) FetchBlocks(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error) {
	entries, err := s.fetchUserEntries(ctx,
		`SELECT u.id, u.username FROM blocks b JOIN users u ON u.id = b.target_id WHERE b.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching blocks for %s: %w", userID, err)
	}
	return entries, nil
}

func (s *Store) FetchMatchHistory(ctx context.Context, userID uuid.UUID, mode uint8) ([]wire.MatchResultRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT match_id, concluded_at, placement, elo_delta FROM match_results
		 WHERE player_id = $1 AND mode = $2 ORDER BY concluded_at DESC`, userID, mode)
	if err != nil {
		return nil, fmt.Errorf("fetching match history for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []wire.MatchResultRow
	for rows.Next() {
		var r wire.MatchResultRow
		var concludedAt time.Time
		if err := rows.Scan(&r.MatchID, &concludedAt, &r.Placement, &r.EloDelta); err != nil {
			return nil, fmt.Errorf("scanning match history row: %w", err)
		}
		r.EpochSec = uint64(concludedAt.Unix())
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) FetchReplay(ctx context.Context, matchID uint64) (*wire.MatchReplay, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM match_replays WHERE match_id = $1`, matchID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching replay %d: %w", matchID, err)
	}
	replay, err := wire.DecodeMatchReplay(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding stored replay %d: %w", matchID, err)
	}
	return &replay, nil
}

// StoreReplay persists the encoded replay blob for matchID. Not part of
// the Store interface (spec.md never describes replay capture as a
// client-facing write), but record_match's caller invokes it alongside
// RecordMatch when a runtime hands back its full command history.
func (s *Store) StoreReplay(ctx context.Context, matchID uint64, mode uint8, concludedAt time.Time, replay wire.MatchReplay) error {
	payload, err := wire.EncodeMatchReplay(replay)
	if err != nil {
		return fmt.Errorf("encoding replay %d: %w", matchID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO match_replays (match_id, mode, concluded_at, payload) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (match_id) DO NOTHING`,
		matchID, mode, concludedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("storing replay %d: %w", matchID, err)
	}
	return nil
}
