// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package sable is a generated GoMock package.
package sable

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockPageStore is a mock of PageStore interface.
type MockPageStore struct {
	ctrl     *gomock.Controller
	recorder *MockPageStoreMockRecorder
}

// MockPageStoreMockRecorder is the mock recorder for MockPageStore.
type MockPageStoreMockRecorder struct {
	mock *MockPageStore
}

// NewMockPageStore creates a new mock instance.
func NewMockPageStore(ctrl *gomock.Controller) *MockPageStore {
	mock := &MockPageStore{ctrl: ctrl}
	mock.recorder = &MockPageStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPageStore) EXPECT() *MockPageStoreMockRecorder {
	return m.recorder
}

// ReadPage mocks base method.
func (m *MockPageStore) ReadPage(arg0 ActorId, arg1 PageNumber) ([]byte, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReadPage", arg0, arg1)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// ReadPage indicates an expected call of ReadPage.
func (mr *MockPageStoreMockRecorder) ReadPage(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadPage", reflect.TypeOf((*MockPageStore)(nil).ReadPage), arg0, arg1)
}
