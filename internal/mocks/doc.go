// Package mocks holds gomock mocks of the driver contracts.
package mocks

//go:generate mockgen -destination=mock_driver.go -package=mocks github.com/mesh-intelligence/unisql/pkg/types Driver,Conn
