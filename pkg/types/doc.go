// Package types defines the driver capability contract, the declarative schema
// model, the DAO and ConnectionManager interfaces, and the error taxonomy
// shared by every unisql package.
//
// Drivers implement Driver and Conn. The manager and engine consume them and
// expose ConnectionManager and DAO to callers. Implementations live under
// internal/; callers construct them through pkg/unisql.
package types
