package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
)

// Connect opens a *sqlx.DB on the postgres driver and verifies connectivity
// with a ping.
func Connect(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// DSN adds the session settings to the connection string. lib/pq sends
// unknown parameters as run-time parameters on every new connection, so
// pooled connections all get the same time zone and encoding.
func DSN(cfg config.Database) string {
	params := map[string]string{}
	if cfg.TimeZone != "" {
		params["timezone"] = cfg.TimeZone
	}
	if cfg.ClientEncoding != "" {
		params["client_encoding"] = cfg.ClientEncoding
	}
	if len(params) == 0 {
		return cfg.URL
	}

	if strings.HasPrefix(cfg.URL, "postgres://") || strings.HasPrefix(cfg.URL, "postgresql://") {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return cfg.URL
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	// key=value form
	var b strings.Builder
	b.WriteString(cfg.URL)
	for _, k := range []string{"timezone", "client_encoding"} {
		if v, ok := params[k]; ok {
			b.WriteString(" " + k + "=" + quoteLiteral(v))
		}
	}
	return strings.TrimSpace(b.String())
}

// quoteLiteral escapes single quotes and wraps the value in single quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

// TableEnsurer is implemented by repositories that can create their schema.
type TableEnsurer interface {
	EnsureTable(ctx context.Context) error
}

// EnsureAll runs EnsureTable on each repository in order.
func EnsureAll(ctx context.Context, repos ...TableEnsurer) error {
	for _, r := range repos {
		if err := r.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure table (%T): %w", r, err)
		}
	}
	return nil
}
