// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"github.com/luxfi/ids"
)

// Transaction is the narrow view of a local transaction that the account
// synchronization core needs: the accounts it references and how it intends
// to use them. The execution engine owns the full transaction format.
type Transaction struct {
	ID       ids.ID
	Payer    ids.ID
	Readonly []ids.ID
	Writable []ids.ID
}
