// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package sable defines the common vocabulary of the Sable actor execution
// core. It contains the message and dispatch data model, the journal produced
// by executions, and the interfaces connecting processors, interpreters, and
// the ledger hosting them.
//
// Implementations of the Interpreter and Processor interfaces live in
// sub-packages and register themselves in the registries of this package.
package sable
