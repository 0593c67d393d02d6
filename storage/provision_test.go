package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

func TestHasErrorCode(t *testing.T) {
	exists := &azcore.ResponseError{ErrorCode: string(aztables.TableAlreadyExists), StatusCode: 409}
	if !hasErrorCode(errors.Join(exists), string(aztables.TableAlreadyExists)) {
		t.Fatal("expected wrapped response error to match")
	}
	if hasErrorCode(exists, queueAlreadyExists) {
		t.Fatal("unexpected match for a different code")
	}
	if hasErrorCode(errors.New("plain"), queueAlreadyExists) {
		t.Fatal("plain errors never match")
	}
}

func TestCreateSkipsEmptyNames(t *testing.T) {
	if err := CreateQueues(context.Background(), "unused", "", ""); err != nil {
		t.Fatalf("expected no work for empty names, got %v", err)
	}
}

func TestCreateTablesRejectsBadConnectionString(t *testing.T) {
	if err := CreateTables(context.Background(), "not-a-connection-string", "tasks"); err == nil {
		t.Fatal("expected connection string error")
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(errors.Join(&azcore.ResponseError{StatusCode: 404})) {
		t.Fatal("expected 404 to be not found")
	}
	if isNotFound(&azcore.ResponseError{StatusCode: 409}) {
		t.Fatal("409 is not not-found")
	}
}
