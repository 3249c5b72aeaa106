package sqlxrepos

import (
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
)

// integrityCodes are the Postgres errors the API cannot recover from without a restart:
// a missing database, table or column, or a database being shut down.
var integrityCodes = map[pq.ErrorCode]bool{
	"3D000": true, // invalid_catalog_name
	"42P01": true, // undefined_table
	"42703": true, // undefined_column
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// wrapErr annotates err with msg. Integrity failures become shutdown errors.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && integrityCodes[pqErr.Code] {
		return core.NewShutdownError(fmt.Sprintf("%s: database integrity issue: %v", msg, err))
	}
	return errors.Wrap(err, msg)
}
