package dynamodb

// PK/SK prefix constants.
const (
	prefixState = "STATE#"

	skDocument = "DOCUMENT"

	defaultNamespace = "default"
)

func statePK(namespace string) string { return prefixState + namespace }
func documentSK() string              { return skDocument }
