package store

import (
	"fmt"
	"strconv"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
)

// testKeypair is the minimal docmodel.Keypair fake used across this
// package's tests.
type testKeypair struct {
	addr docmodel.AuthorAddress
}

func (k testKeypair) Address() docmodel.AuthorAddress { return k.addr }

func kp(addr string) testKeypair {
	return testKeypair{addr: docmodel.AuthorAddress(addr)}
}

// testValidator is a format "test" validator with no real cryptography:
// it accepts any well-formed document and "signs" by deriving a
// deterministic signature from the document's fields, so tests can
// exercise the LWW tiebreak by choosing signatures directly (via
// ingestRaw) or let the validator derive one.
type testValidator struct {
	acceptedWorkspace docmodel.WorkspaceAddress
}

func newTestValidator(workspace docmodel.WorkspaceAddress) *testValidator {
	return &testValidator{acceptedWorkspace: workspace}
}

func (v *testValidator) Format() string { return "test" }

func (v *testValidator) CheckDocumentIsValid(doc docmodel.Document, now int64) error {
	if doc.Path == "" {
		return docmodel.NewDocumentValidationError(docmodel.ErrCodeDocumentInvalid, "path must be non-empty", doc)
	}
	return nil
}

func (v *testValidator) CheckWorkspaceIsValid(workspace docmodel.WorkspaceAddress) error {
	if workspace != v.acceptedWorkspace {
		return docmodel.NewValidationError(docmodel.ErrCodeWorkspaceMismatch,
			fmt.Sprintf("validator only accepts workspace %q", v.acceptedWorkspace))
	}
	return nil
}

func (v *testValidator) CheckTimestampIsOk(timestamp int64, deleteAfter *int64, now int64) error {
	if timestamp < 0 {
		return docmodel.NewValidationError(docmodel.ErrCodeBadTimestamp, "timestamp must be non-negative")
	}
	if deleteAfter != nil && *deleteAfter < timestamp {
		return docmodel.NewValidationError(docmodel.ErrCodeBadTimestamp, "deleteAfter must not precede timestamp")
	}
	return nil
}

func (v *testValidator) SignDocument(keypair docmodel.Keypair, unsigned docmodel.Document) (docmodel.Document, error) {
	signed := unsigned
	signed.Author = keypair.Address()
	signed.Signature = derivedSignature(signed)
	return signed, nil
}

// derivedSignature is deterministic over the document's content and
// identity fields, standing in for a real cryptographic signature.
func derivedSignature(doc docmodel.Document) string {
	return "sig:" + string(doc.Author) + ":" + doc.ContentHash + ":" + strconv.FormatInt(doc.Timestamp, 10)
}

// ingestRaw builds a fully-formed, pre-signed document with an explicit
// signature (bypassing SignDocument) so tests can exercise the LWW
// tiebreak directly.
func ingestRaw(workspace docmodel.WorkspaceAddress, path string, author docmodel.AuthorAddress, content string, timestamp int64, signature string, deleteAfter *int64) docmodel.Document {
	return docmodel.Document{
		Format:      "test",
		Workspace:   workspace,
		Path:        path,
		Content:     content,
		ContentHash: docmodel.ComputeContentHash(content),
		Author:      author,
		Timestamp:   timestamp,
		DeleteAfter: deleteAfter,
		Signature:   signature,
	}
}
