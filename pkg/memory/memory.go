// Package memory persists short per-user Q/A snippets and retrieves them by
// text similarity, so follow-up conversations can be grounded in what a
// user asked before.
package memory

import (
	"context"
	"sort"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Dango-F/medical-chat/internal/util"
	"github.com/Dango-F/medical-chat/pkg/logger"
)

// Memory is one stored snippet with its similarity to the search query.
type Memory struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Store retrieves and persists user memories.
type Store interface {
	StoreMemory(ctx context.Context, userID, content string) error
	SearchMemory(ctx context.Context, query, userID string, topK int) ([]Memory, error)
}

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// DBStore is a Postgres-backed Store. Similarity is computed in-process
// over the user's recent snippets; the table stays index-free.
type DBStore struct {
	conn pgxIConn
}

// NewDBStore creates a store over an existing connection.
func NewDBStore(conn pgxIConn) *DBStore {
	return &DBStore{conn: conn}
}

// StoreMemory persists one snippet for a user.
func (s *DBStore) StoreMemory(ctx context.Context, userID, content string) error {
	if userID == "" || content == "" {
		return nil
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO memories (user_id, content, created_at)
		VALUES ($1, $2, now())`,
		userID, content,
	)
	return err
}

// maximum snippets loaded per search; memories beyond this age out of recall
const searchWindow = 200

// SearchMemory loads the user's most recent snippets and ranks them by
// bigram similarity to the query, returning at most topK matches with
// non-zero scores, sorted descending.
func (s *DBStore) SearchMemory(ctx context.Context, query, userID string, topK int) ([]Memory, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, content, created_at
		FROM memories
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, searchWindow,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankMemories(query, memories, topK), nil
}

// rankMemories scores snippets against the query and keeps the topK best.
// Zero-score snippets are dropped so unrelated history never reaches the
// generation context.
func rankMemories(query string, memories []Memory, topK int) []Memory {
	ranked := memories[:0:0]
	for _, m := range memories {
		m.Score = Similarity(query, m.Content)
		if m.Score <= 0 {
			continue
		}
		ranked = append(ranked, m)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// StoreAsync persists a snippet in the background; failures are logged,
// never surfaced. Used after answering so the response is not delayed by
// the write.
func StoreAsync(store Store, userID, content string) {
	if store == nil || userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
			return store.StoreMemory(ctx, userID, content)
		})
		if err != nil {
			logger.Debug("failed to store memory", "user_id", userID, "error", err)
		}
	}()
}

// Similarity is the Dice coefficient over rune bigrams, in [0,1]. Short
// inputs fall back to rune overlap so single-character Chinese queries
// still rank.
func Similarity(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 || len(br) == 0 {
		return 0
	}
	if len(ar) < 2 || len(br) < 2 {
		set := make(map[rune]bool, len(ar))
		for _, r := range ar {
			set[r] = true
		}
		hits := 0
		seen := make(map[rune]bool)
		for _, r := range br {
			if set[r] && !seen[r] {
				hits++
				seen[r] = true
			}
		}
		return 2 * float64(hits) / float64(len(ar)+len(br))
	}

	bigrams := func(rs []rune) map[[2]rune]int {
		m := make(map[[2]rune]int, len(rs)-1)
		for i := 0; i < len(rs)-1; i++ {
			m[[2]rune{rs[i], rs[i+1]}]++
		}
		return m
	}

	am, bm := bigrams(ar), bigrams(br)
	overlap := 0
	for bg, n := range am {
		if o, ok := bm[bg]; ok {
			overlap += min(n, o)
		}
	}
	return 2 * float64(overlap) / float64(len(ar)-1+len(br)-1)
}
