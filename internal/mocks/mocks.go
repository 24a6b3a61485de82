// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// -- TextGenerator Mock --

// MockTextGenerator mocks schemas.TextGenerator.
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// -- KnowledgeStore Mock --

// MockKnowledgeStore mocks schemas.KnowledgeStore.
type MockKnowledgeStore struct {
	mock.Mock
}

func (m *MockKnowledgeStore) Find(ctx context.Context, fp schemas.FieldFingerprint) (schemas.KnowledgeEntry, error) {
	args := m.Called(ctx, fp)
	return args.Get(0).(schemas.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeStore) RecordResult(ctx context.Context, field schemas.ElementDescriptor, tc schemas.TestCase, res schemas.ExecutionResult) error {
	args := m.Called(ctx, field, tc, res)
	return args.Error(0)
}

func (m *MockKnowledgeStore) SaveCases(ctx context.Context, field schemas.ElementDescriptor, cases []schemas.TestCase) error {
	args := m.Called(ctx, field, cases)
	return args.Error(0)
}

func (m *MockKnowledgeStore) Snapshot(ctx context.Context) (map[schemas.FieldFingerprint]schemas.KnowledgeEntry, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[schemas.FieldFingerprint]schemas.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// -- BrowserManager Mock --

// MockBrowserManager mocks schemas.BrowserManager.
type MockBrowserManager struct {
	mock.Mock
}

func (m *MockBrowserManager) NewPage(ctx context.Context) (schemas.Page, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.(schemas.Page), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserManager) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
