package repository

import (
	"database/sql"
	"database/sql/driver"

	"github.com/lib/pq"
)

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// pqStringArray は文字列スライスをPostgreSQLの配列パラメータに変換する。
func pqStringArray(values []string) driver.Valuer {
	return pq.Array(values)
}
