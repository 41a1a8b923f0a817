package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Number generators for user-facing identifiers. Uniqueness comes from the
// second-resolution timestamp plus crypto/rand entropy; the unique index on
// the corresponding column is the hard backstop.

func GenerateTicketNumber() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("TKT-%d-%06d", timestamp, randomNum.Int64())
}

func GenerateManifestNumber() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("PLA-%d-%06d", timestamp, randomNum.Int64())
}

func GenerateTransferNumber() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("ENV-%d-%06d", timestamp, randomNum.Int64())
}
