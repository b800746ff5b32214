package verifactu

import (
	"fmt"
	"strings"
)

// FormatFullNumber compone el número completo de la factura:
//
//	"{prefix}-{code}-{number:06d}" con prefijo, "{code}-{number:06d}" sin él.
func FormatFullNumber(prefix, code string, number int64) string {
	prefix = strings.TrimSpace(prefix)
	code = strings.TrimSpace(code)
	if prefix == "" {
		return fmt.Sprintf("%s-%06d", code, number)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, code, number)
}
