package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

var tableNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Open DSN mariadb://, mysql://, sqlite:// ou file: → driver + DSN natif
func Open(dsn string) (*sql.DB, string, error) {
	driver, nativeDSN, err := resolveDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driver, nativeDSN)
	if err != nil {
		return nil, "", err
	}
	if driver == "sqlite" {
		// un seul writer côté sqlite
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nativeDSN, nil
}

func resolveDSN(dsn string) (driver, native string, err error) {
	switch {
	case dsn == "":
		return "", "", fmt.Errorf("dsn vide")
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("dsn sqlite sans chemin")
		}
		return "sqlite", path, nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", dsn, nil
	default:
		native, err := toMySQLDSN(dsn)
		if err != nil {
			return "", "", err
		}
		return "mysql", native, nil
	}
}

// toMySQLDSN convertit une URL mariadb:// ou mysql:// en mysql.Config.
// Tout autre DSN est supposé natif et passe tel quel.
func toMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mariadb://") && !strings.HasPrefix(dsn, "mysql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", fmt.Errorf("dsn incomplet (user/host/db)")
	}
	// horodatages lus en UTC, requêtes interpolées côté client
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true
	return cfg.FormatDSN(), nil
}

// LoadTable lit toutes les colonnes d'une table, dans l'ordre de stockage,
// et renvoie chaque valeur sous forme de texte (NULL → "").
func LoadTable(ctx context.Context, db *sql.DB, tableName string) ([]string, [][]string, error) {
	if !tableNameRE.MatchString(tableName) {
		return nil, nil, fmt.Errorf("table invalide: %q", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns %s: %w", tableName, err)
	}

	var out [][]string
	for rows.Next() {
		raw := make([]sql.RawBytes, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", tableName, err)
		}
		record := make([]string, len(columns))
		for i, b := range raw {
			// RawBytes n'est valide que jusqu'au prochain Next
			record[i] = string(b)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}
