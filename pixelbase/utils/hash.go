package utils

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/mitchellh/hashstructure/v2"
)

var hashOptions = &hashstructure.HashOptions{SlicesAsSets: true}

func HashString(value string) [16]byte {
	return md5.Sum([]byte(value))
}

func HashStringHex(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

func HashAny(value interface{}) (uint64, error) {
	hash, err := hashstructure.Hash(value, hashstructure.FormatV2, hashOptions)
	if err != nil {
		return 0, err
	}

	return hash, nil
}
