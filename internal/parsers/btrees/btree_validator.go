package btrees

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// ErrInvalidNode is wrapped by ValidationResult.Err
var ErrInvalidNode = errors.New("invalid B-tree node")

// BTreeValidator checks a node against the position it was reached from
type BTreeValidator struct{}

// NewBTreeValidator creates a new B-tree validator
func NewBTreeValidator() *BTreeValidator {
	return &BTreeValidator{}
}

// ValidationResult contains the result of validation
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Err returns nil for a valid node, or an error listing every problem found
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidNode, strings.Join(r.Errors, "; "))
}

// ValidateNode checks that a node fits the tree it was reached in: keys must
// strictly ascend and lie within bounds, and leaves must carry values of
// leafValueSize bytes.
func (btv *BTreeValidator) ValidateNode(node interfaces.BTreeNodeReader, bounds types.KeyRange, leafValueSize uint32, isRoot bool) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	btv.checkValueSize(node, leafValueSize, result)
	btv.checkKeyCount(node, isRoot, result)
	btv.checkKeyOrder(node, bounds, result)

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

// checkValueSize validates that leaves hold the values this tree expects
func (btv *BTreeValidator) checkValueSize(node interfaces.BTreeNodeReader, leafValueSize uint32, result *ValidationResult) {
	if node.IsLeaf() && node.ValueSize() != leafValueSize {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"leaf value size %d, tree stores %d byte values",
			node.ValueSize(), leafValueSize))
	}
}

// checkKeyCount validates that only a root may be empty
func (btv *BTreeValidator) checkKeyCount(node interfaces.BTreeNodeReader, isRoot bool, result *ValidationResult) {
	if node.KeyCount() != 0 {
		return
	}
	if node.IsInternal() {
		result.Errors = append(result.Errors, "internal node has no children")
		return
	}
	if !isRoot {
		result.Warnings = append(result.Warnings, "empty non-root leaf")
	}
}

// checkKeyOrder validates ordering and the bounds inherited from the parent
func (btv *BTreeValidator) checkKeyOrder(node interfaces.BTreeNodeReader, bounds types.KeyRange, result *ValidationResult) {
	n := int(node.KeyCount())
	for i := 0; i < n; i++ {
		key := node.Key(i)

		if !bounds.Contains(key) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"key %d at index %d outside parent range %s", key, i, bounds))
			return
		}

		if i > 0 && key <= node.Key(i-1) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"keys out of order at index %d: %d follows %d", i, key, node.Key(i-1)))
			return
		}
	}
}
