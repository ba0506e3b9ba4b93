package config

import (
	"path/filepath"
	"strconv"
)

// DatabasePath returns the sqlite file path derived from the data
// directory; postgres deployments ignore it.
func DatabasePath() string {
	return filepath.Join(Get().Database.DataDir, "streamgate.db")
}

// DatabaseURL builds a libpq-style connection string for postgres.
// Only called when Database.Type == "postgres".
func DatabaseURL() string {
	c := Get().Database
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + strconv.Itoa(c.Port) +
		" sslmode=disable"
}
