package path

import (
	"fmt"
)

var (
	ErrMissingDerivationPath   = fmt.Errorf("missing derivation path")
	ErrMalformedDerivationPath = fmt.Errorf("path must not start or end with a '/'")
)
