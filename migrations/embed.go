// Package migrations embeds the PostgreSQL schema and demo seeds.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql seeds/*.sql
var files embed.FS

// Schema holds the *.up.sql and *.down.sql files.
func Schema() fs.FS { return files }

// Seeds holds the optional demo data.
func Seeds() fs.FS {
	sub, err := fs.Sub(files, "seeds")
	if err != nil {
		panic(err)
	}
	return sub
}
