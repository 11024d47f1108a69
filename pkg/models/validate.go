package models

import (
	"errors"
	"fmt"
)

// Definition-level validation errors, surfaced synchronously on create and
// update. The service layer maps these to API validation responses.
var (
	ErrNoTriggerNode        = errors.New("workflow must have exactly one trigger node")
	ErrMultipleTriggerNodes = errors.New("workflow must not have more than one trigger node")
	ErrDuplicateNodeID      = errors.New("duplicate node id")
	ErrInvalidNodeType      = errors.New("invalid node type")
	ErrDanglingConnection   = errors.New("connection references unknown node")
)

// Validate checks the structural invariants of a definition: every node has
// a known type and a unique id, exactly one trigger node exists, and every
// connection endpoint references a node in the definition. Self-loops are
// permitted; the sequential traversal's visited set keeps them from looping.
func (d *WorkflowDefinition) Validate() error {
	nodeIDs := make(map[string]struct{}, len(d.Nodes))
	triggers := 0

	for _, node := range d.Nodes {
		if !node.Type.Valid() {
			return fmt.Errorf("node %s: %w: %q", node.ID, ErrInvalidNodeType, node.Type)
		}

		if _, seen := nodeIDs[node.ID]; seen {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}

		nodeIDs[node.ID] = struct{}{}

		if node.Type == NodeTypeTrigger {
			triggers++
		}
	}

	if triggers == 0 {
		return ErrNoTriggerNode
	}

	if triggers > 1 {
		return fmt.Errorf("%w: found %d", ErrMultipleTriggerNodes, triggers)
	}

	for _, conn := range d.Connections {
		if _, ok := nodeIDs[conn.Source]; !ok {
			return fmt.Errorf("connection %s: %w: source %s", conn.ID, ErrDanglingConnection, conn.Source)
		}

		if _, ok := nodeIDs[conn.Target]; !ok {
			return fmt.Errorf("connection %s: %w: target %s", conn.ID, ErrDanglingConnection, conn.Target)
		}
	}

	return nil
}

// IsDefinitionInvalid reports whether err is one of the definition
// validation errors.
func IsDefinitionInvalid(err error) bool {
	return errors.Is(err, ErrNoTriggerNode) ||
		errors.Is(err, ErrMultipleTriggerNodes) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrDanglingConnection)
}
