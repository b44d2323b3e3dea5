// Package database provides the SQLite connection used by the device
// cache. It handles directory creation, WAL mode, file permissions and
// connection verification so callers receive a ready-to-use handle.
package database
