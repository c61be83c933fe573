package narrow

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolver resolves the string operands of legacy narrows. Older
// servers and stored narrows use emails and stream names where modern
// ones use numeric IDs.
type Resolver interface {
	UserIDByEmail(email string) (int64, bool)
	StreamIDByName(name string) (int64, bool)
}

// Classify canonicalizes a clause list into exactly one identity
// variant, or fails with ErrInvalidNarrow if the shape matches none.
// Operands that are not numeric are resolved through res; a nil or
// failing resolver yields ErrUnknownUser (for pm-with operands) or
// ErrInvalidNarrow (for stream names).
func Classify(clauses []Clause, res Resolver) (Identity, error) {
	switch len(clauses) {
	case 0:
		return AllMessages{}, nil

	case 1:
		c := clauses[0]
		switch c.Operator {
		case OpIs:
			switch c.Operand {
			case "starred":
				return Starred{}, nil
			case "mentioned":
				return Mentioned{}, nil
			case "private":
				return AllPms{}, nil
			default:
				return nil, fmt.Errorf("%w: is:%s", ErrInvalidNarrow, c.Operand)
			}
		case OpStream:
			id, err := resolveStream(c.Operand, res)
			if err != nil {
				return nil, err
			}
			return Stream{StreamID: id}, nil
		case OpPmWith:
			ids, err := resolvePmOperand(c.Operand, res)
			if err != nil {
				return nil, err
			}
			return NewPm(ids...)
		case OpSearch:
			return Search{Query: c.Operand}, nil
		default:
			return nil, fmt.Errorf("%w: operator %q", ErrInvalidNarrow, c.Operator)
		}

	case 2:
		first, second := clauses[0], clauses[1]
		if first.Operator != OpStream || second.Operator != OpTopic {
			return nil, fmt.Errorf("%w: operators %q,%q", ErrInvalidNarrow, first.Operator, second.Operator)
		}
		id, err := resolveStream(first.Operand, res)
		if err != nil {
			return nil, err
		}
		return Topic{StreamID: id, Topic: second.Operand}, nil

	default:
		return nil, fmt.Errorf("%w: %d clauses", ErrInvalidNarrow, len(clauses))
	}
}

// Clauses returns the canonical clause-list form of an identity, using
// numeric operands throughout. Classify(Clauses(id), nil) returns an
// identity equal to id for every variant.
func Clauses(id Identity) []Clause {
	switch n := id.(type) {
	case AllMessages:
		return nil
	case Starred:
		return []Clause{{Operator: OpIs, Operand: "starred"}}
	case Mentioned:
		return []Clause{{Operator: OpIs, Operand: "mentioned"}}
	case AllPms:
		return []Clause{{Operator: OpIs, Operand: "private"}}
	case Stream:
		return []Clause{{Operator: OpStream, Operand: strconv.FormatInt(n.StreamID, 10)}}
	case Topic:
		return []Clause{
			{Operator: OpStream, Operand: strconv.FormatInt(n.StreamID, 10)},
			{Operator: OpTopic, Operand: n.Topic},
		}
	case Pm:
		return []Clause{{Operator: OpPmWith, Operand: n.UnreadsKey()}}
	case Search:
		return []Clause{{Operator: OpSearch, Operand: n.Query}}
	default:
		return nil
	}
}

// FromMessage derives the message's own conversation identity.
func FromMessage(streamID int64, topic string, participantIDs []int64, ownUserID int64, isPrivate bool) (Identity, error) {
	if !isPrivate {
		if topic != "" {
			return Topic{StreamID: streamID, Topic: topic}, nil
		}
		return Stream{StreamID: streamID}, nil
	}
	return PmFromParticipants(participantIDs, ownUserID)
}

func resolveStream(operand string, res Resolver) (int64, error) {
	operand = strings.TrimSpace(operand)
	if id, err := strconv.ParseInt(operand, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	if res != nil {
		if id, ok := res.StreamIDByName(operand); ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stream %q", ErrInvalidNarrow, operand)
}

func resolvePmOperand(operand string, res Resolver) ([]int64, error) {
	parts := strings.Split(operand, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		if res != nil {
			if id, ok := res.UserIDByEmail(part); ok {
				ids = append(ids, id)
				continue
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, part)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty pm-with operand", ErrInvalidNarrow)
	}
	return ids, nil
}
