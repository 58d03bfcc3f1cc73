package daraja

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// gateway-mandated timestamp layout (YYYYMMDDHHMMSS)
const timestampLayout = "20060102150405"

// stkPassword derives the Lipa na M-Pesa request password for a given instant:
// base64(shortcode + passkey + timestamp). The gateway validates freshness, so
// callers must compute it per request, never cache it.
func stkPassword(shortCode, passkey string, at time.Time) (password, timestamp string) {
	timestamp = at.Format(timestampLayout)
	password = base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
	return password, timestamp
}

// initiatorPassword is the raw concatenation encrypted into the B2C
// SecurityCredential. Unlike the STK password it is not base64-encoded before
// encryption.
func initiatorPassword(shortCode, passkey string, at time.Time) string {
	return shortCode + passkey + at.Format(timestampLayout)
}

// NewOriginatorConversationID builds a globally unique correlation key for a
// disbursement, generated before the network call so the record can always be
// found when the asynchronous result arrives.
func NewOriginatorConversationID() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:7]
	return fmt.Sprintf("HAVEN-%s-%d", token, time.Now().Unix())
}
