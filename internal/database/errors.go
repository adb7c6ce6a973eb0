package database

import (
	"github.com/go-faster/errors"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

func IsRecordNotFoundErr(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}
