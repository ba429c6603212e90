package broker

import "fmt"

// StateKey is the store key of a pending authorization.
func StateKey(provider, orgID, userID string) string {
	return fmt.Sprintf("state:%s:%s:%s", provider, orgID, userID)
}

// CredentialKey is the store key of an exchanged credential awaiting pickup.
func CredentialKey(provider, orgID, userID string) string {
	return fmt.Sprintf("cred:%s:%s:%s", provider, orgID, userID)
}
