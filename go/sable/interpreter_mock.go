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

// MockInterpreter is a mock of Interpreter interface.
type MockInterpreter struct {
	ctrl     *gomock.Controller
	recorder *MockInterpreterMockRecorder
}

// MockInterpreterMockRecorder is the mock recorder for MockInterpreter.
type MockInterpreterMockRecorder struct {
	mock *MockInterpreter
}

// NewMockInterpreter creates a new mock instance.
func NewMockInterpreter(ctrl *gomock.Controller) *MockInterpreter {
	mock := &MockInterpreter{ctrl: ctrl}
	mock.recorder = &MockInterpreterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockInterpreter) EXPECT() *MockInterpreterMockRecorder {
	return m.recorder
}

// Run mocks base method.
func (m *MockInterpreter) Run(arg0 Parameters) (Result, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Run", arg0)
	ret0, _ := ret[0].(Result)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Run indicates an expected call of Run.
func (mr *MockInterpreterMockRecorder) Run(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Run", reflect.TypeOf((*MockInterpreter)(nil).Run), arg0)
}

// MockMemory is a mock of Memory interface.
type MockMemory struct {
	ctrl     *gomock.Controller
	recorder *MockMemoryMockRecorder
}

// MockMemoryMockRecorder is the mock recorder for MockMemory.
type MockMemoryMockRecorder struct {
	mock *MockMemory
}

// NewMockMemory creates a new mock instance.
func NewMockMemory(ctrl *gomock.Controller) *MockMemory {
	mock := &MockMemory{ctrl: ctrl}
	mock.recorder = &MockMemoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockMemory) EXPECT() *MockMemoryMockRecorder {
	return m.recorder
}

// Size mocks base method.
func (m *MockMemory) Size() WasmPageNumber {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Size")
	ret0, _ := ret[0].(WasmPageNumber)
	return ret0
}

// Size indicates an expected call of Size.
func (mr *MockMemoryMockRecorder) Size() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Size", reflect.TypeOf((*MockMemory)(nil).Size))
}

// Read mocks base method.
func (m *MockMemory) Read(arg0 uint32, arg1 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Read", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Read indicates an expected call of Read.
func (mr *MockMemoryMockRecorder) Read(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Read", reflect.TypeOf((*MockMemory)(nil).Read), arg0, arg1)
}

// Write mocks base method.
func (m *MockMemory) Write(arg0 uint32, arg1 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Write", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Write indicates an expected call of Write.
func (mr *MockMemoryMockRecorder) Write(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Write", reflect.TypeOf((*MockMemory)(nil).Write), arg0, arg1)
}

// Grow mocks base method.
func (m *MockMemory) Grow(arg0 WasmPageNumber) (WasmPageNumber, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Grow", arg0)
	ret0, _ := ret[0].(WasmPageNumber)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Grow indicates an expected call of Grow.
func (mr *MockMemoryMockRecorder) Grow(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Grow", reflect.TypeOf((*MockMemory)(nil).Grow), arg0)
}

// Free mocks base method.
func (m *MockMemory) Free(arg0 WasmPageNumber) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Free", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Free indicates an expected call of Free.
func (mr *MockMemoryMockRecorder) Free(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Free", reflect.TypeOf((*MockMemory)(nil).Free), arg0)
}

// MockRunContext is a mock of RunContext interface.
type MockRunContext struct {
	ctrl     *gomock.Controller
	recorder *MockRunContextMockRecorder
}

// MockRunContextMockRecorder is the mock recorder for MockRunContext.
type MockRunContextMockRecorder struct {
	mock *MockRunContext
}

// NewMockRunContext creates a new mock instance.
func NewMockRunContext(ctrl *gomock.Controller) *MockRunContext {
	mock := &MockRunContext{ctrl: ctrl}
	mock.recorder = &MockRunContextMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRunContext) EXPECT() *MockRunContextMockRecorder {
	return m.recorder
}

// ChargeGas mocks base method.
func (m *MockRunContext) ChargeGas(arg0 Gas) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ChargeGas", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// ChargeGas indicates an expected call of ChargeGas.
func (mr *MockRunContextMockRecorder) ChargeGas(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ChargeGas", reflect.TypeOf((*MockRunContext)(nil).ChargeGas), arg0)
}

// ChargeHostCall mocks base method.
func (m *MockRunContext) ChargeHostCall(arg0 int) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ChargeHostCall", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// ChargeHostCall indicates an expected call of ChargeHostCall.
func (mr *MockRunContextMockRecorder) ChargeHostCall(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ChargeHostCall", reflect.TypeOf((*MockRunContext)(nil).ChargeHostCall), arg0)
}

// GasAvailable mocks base method.
func (m *MockRunContext) GasAvailable() Gas {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GasAvailable")
	ret0, _ := ret[0].(Gas)
	return ret0
}

// GasAvailable indicates an expected call of GasAvailable.
func (mr *MockRunContextMockRecorder) GasAvailable() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GasAvailable", reflect.TypeOf((*MockRunContext)(nil).GasAvailable))
}

// MessageId mocks base method.
func (m *MockRunContext) MessageId() MessageId {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MessageId")
	ret0, _ := ret[0].(MessageId)
	return ret0
}

// MessageId indicates an expected call of MessageId.
func (mr *MockRunContextMockRecorder) MessageId() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MessageId", reflect.TypeOf((*MockRunContext)(nil).MessageId))
}

// Source mocks base method.
func (m *MockRunContext) Source() ActorId {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Source")
	ret0, _ := ret[0].(ActorId)
	return ret0
}

// Source indicates an expected call of Source.
func (mr *MockRunContextMockRecorder) Source() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Source", reflect.TypeOf((*MockRunContext)(nil).Source))
}

// ProgramId mocks base method.
func (m *MockRunContext) ProgramId() ActorId {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ProgramId")
	ret0, _ := ret[0].(ActorId)
	return ret0
}

// ProgramId indicates an expected call of ProgramId.
func (mr *MockRunContextMockRecorder) ProgramId() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ProgramId", reflect.TypeOf((*MockRunContext)(nil).ProgramId))
}

// Payload mocks base method.
func (m *MockRunContext) Payload() Payload {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Payload")
	ret0, _ := ret[0].(Payload)
	return ret0
}

// Payload indicates an expected call of Payload.
func (mr *MockRunContextMockRecorder) Payload() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Payload", reflect.TypeOf((*MockRunContext)(nil).Payload))
}

// Value mocks base method.
func (m *MockRunContext) Value() Value {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Value")
	ret0, _ := ret[0].(Value)
	return ret0
}

// Value indicates an expected call of Value.
func (mr *MockRunContextMockRecorder) Value() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Value", reflect.TypeOf((*MockRunContext)(nil).Value))
}

// ValueAvailable mocks base method.
func (m *MockRunContext) ValueAvailable() Value {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ValueAvailable")
	ret0, _ := ret[0].(Value)
	return ret0
}

// ValueAvailable indicates an expected call of ValueAvailable.
func (mr *MockRunContextMockRecorder) ValueAvailable() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ValueAvailable", reflect.TypeOf((*MockRunContext)(nil).ValueAvailable))
}

// ReplyDetails mocks base method.
func (m *MockRunContext) ReplyDetails() *ReplyDetails {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReplyDetails")
	ret0, _ := ret[0].(*ReplyDetails)
	return ret0
}

// ReplyDetails indicates an expected call of ReplyDetails.
func (mr *MockRunContextMockRecorder) ReplyDetails() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReplyDetails", reflect.TypeOf((*MockRunContext)(nil).ReplyDetails))
}

// Block mocks base method.
func (m *MockRunContext) Block() BlockInfo {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Block")
	ret0, _ := ret[0].(BlockInfo)
	return ret0
}

// Block indicates an expected call of Block.
func (mr *MockRunContextMockRecorder) Block() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Block", reflect.TypeOf((*MockRunContext)(nil).Block))
}

// Send mocks base method.
func (m *MockRunContext) Send(arg0 Packet) (MessageId, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Send", arg0)
	ret0, _ := ret[0].(MessageId)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Send indicates an expected call of Send.
func (mr *MockRunContextMockRecorder) Send(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Send", reflect.TypeOf((*MockRunContext)(nil).Send), arg0)
}

// SendInit mocks base method.
func (m *MockRunContext) SendInit() (uint32, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendInit")
	ret0, _ := ret[0].(uint32)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendInit indicates an expected call of SendInit.
func (mr *MockRunContextMockRecorder) SendInit() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendInit", reflect.TypeOf((*MockRunContext)(nil).SendInit))
}

// SendPush mocks base method.
func (m *MockRunContext) SendPush(arg0 uint32, arg1 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendPush", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// SendPush indicates an expected call of SendPush.
func (mr *MockRunContextMockRecorder) SendPush(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendPush", reflect.TypeOf((*MockRunContext)(nil).SendPush), arg0, arg1)
}

// SendCommit mocks base method.
func (m *MockRunContext) SendCommit(arg0 uint32, arg1 Packet) (MessageId, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendCommit", arg0, arg1)
	ret0, _ := ret[0].(MessageId)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendCommit indicates an expected call of SendCommit.
func (mr *MockRunContextMockRecorder) SendCommit(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendCommit", reflect.TypeOf((*MockRunContext)(nil).SendCommit), arg0, arg1)
}

// Reply mocks base method.
func (m *MockRunContext) Reply(arg0 ReplyPacket) (MessageId, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reply", arg0)
	ret0, _ := ret[0].(MessageId)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Reply indicates an expected call of Reply.
func (mr *MockRunContextMockRecorder) Reply(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reply", reflect.TypeOf((*MockRunContext)(nil).Reply), arg0)
}

// ReplyPush mocks base method.
func (m *MockRunContext) ReplyPush(arg0 []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReplyPush", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// ReplyPush indicates an expected call of ReplyPush.
func (mr *MockRunContextMockRecorder) ReplyPush(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReplyPush", reflect.TypeOf((*MockRunContext)(nil).ReplyPush), arg0)
}

// ReplyCommit mocks base method.
func (m *MockRunContext) ReplyCommit(arg0 ReplyPacket) (MessageId, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReplyCommit", arg0)
	ret0, _ := ret[0].(MessageId)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReplyCommit indicates an expected call of ReplyCommit.
func (mr *MockRunContextMockRecorder) ReplyCommit(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReplyCommit", reflect.TypeOf((*MockRunContext)(nil).ReplyCommit), arg0)
}

// CreateProgram mocks base method.
func (m *MockRunContext) CreateProgram(arg0 InitPacket) (ActorId, MessageId, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateProgram", arg0)
	ret0, _ := ret[0].(ActorId)
	ret1, _ := ret[1].(MessageId)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// CreateProgram indicates an expected call of CreateProgram.
func (mr *MockRunContextMockRecorder) CreateProgram(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateProgram", reflect.TypeOf((*MockRunContext)(nil).CreateProgram), arg0)
}

// Wake mocks base method.
func (m *MockRunContext) Wake(arg0 MessageId) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Wake", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Wake indicates an expected call of Wake.
func (mr *MockRunContextMockRecorder) Wake(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Wake", reflect.TypeOf((*MockRunContext)(nil).Wake), arg0)
}

// Wait mocks base method.
func (m *MockRunContext) Wait(arg0 WaitKind, arg1 uint32) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Wait", arg0, arg1)
	ret0, _ := ret[0].(error)
	return ret0
}

// Wait indicates an expected call of Wait.
func (mr *MockRunContextMockRecorder) Wait(arg0, arg1 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Wait", reflect.TypeOf((*MockRunContext)(nil).Wait), arg0, arg1)
}

// Exit mocks base method.
func (m *MockRunContext) Exit(arg0 ActorId) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Exit", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Exit indicates an expected call of Exit.
func (mr *MockRunContextMockRecorder) Exit(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Exit", reflect.TypeOf((*MockRunContext)(nil).Exit), arg0)
}

// Leave mocks base method.
func (m *MockRunContext) Leave() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Leave")
	ret0, _ := ret[0].(error)
	return ret0
}

// Leave indicates an expected call of Leave.
func (mr *MockRunContextMockRecorder) Leave() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Leave", reflect.TypeOf((*MockRunContext)(nil).Leave))
}

// Panic mocks base method.
func (m *MockRunContext) Panic(arg0 string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Panic", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Panic indicates an expected call of Panic.
func (mr *MockRunContextMockRecorder) Panic(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Panic", reflect.TypeOf((*MockRunContext)(nil).Panic), arg0)
}

// Random mocks base method.
func (m *MockRunContext) Random(arg0 []byte) ([32]byte, uint64) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Random", arg0)
	ret0, _ := ret[0].([32]byte)
	ret1, _ := ret[1].(uint64)
	return ret0, ret1
}

// Random indicates an expected call of Random.
func (mr *MockRunContextMockRecorder) Random(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Random", reflect.TypeOf((*MockRunContext)(nil).Random), arg0)
}

// Debug mocks base method.
func (m *MockRunContext) Debug(arg0 string) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Debug", arg0)
}

// Debug indicates an expected call of Debug.
func (mr *MockRunContextMockRecorder) Debug(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Debug", reflect.TypeOf((*MockRunContext)(nil).Debug), arg0)
}
