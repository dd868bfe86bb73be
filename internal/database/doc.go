// Package database stores the history of crawl runs in SQLite.
//
// Every run is saved with its parameters, outcome and listings so that a
// later run of the same query can tell whether the results changed, and so
// that past results can be listed without crawling again. The database is a
// single file in the XDG data directory, accessed through the pure Go
// modernc.org/sqlite driver.
package database
