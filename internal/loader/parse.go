package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// File is one parsed model file.
type File struct {
	Path     string
	Metadata map[string]any
	Shapes   []core.Shape
}

var (
	rootFields   = map[string]bool{"version": true, "metadata": true, "shapes": true}
	shapeFields  = map[string]bool{"type": true, "members": true, "traits": true, "tags": true}
	memberFields = map[string]bool{"target": true, "traits": true}
)

// Parse decodes a model document. JSON documents are accepted as YAML.
//
// The format is
//
//	metadata: {key: value}
//	shapes:
//	  ns#Name:
//	    type: structure
//	    tags: [public]
//	    traits: {documentation: "..."}
//	    members:
//	      field: {target: ns#Other, traits: {required: true}}
//
// Members keep their document order.
func Parse(name string, data []byte) (*File, error) {
	f := &File{Path: name}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: name, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return f, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{File: name, Line: root.Line, Message: "model document must be a mapping"}
	}

	var shapesNode *yaml.Node
	err := eachField(name, root, "the document root", rootFields, func(key string, value *yaml.Node) error {
		switch key {
		case "version":
			var v string
			if err := value.Decode(&v); err != nil {
				return &ParseError{File: name, Line: value.Line, Message: "version must be a string"}
			}
		case "metadata":
			if err := value.Decode(&f.Metadata); err != nil {
				return &ParseError{File: name, Line: value.Line, Message: fmt.Sprintf("metadata: %v", err)}
			}
		case "shapes":
			shapesNode = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shapesNode == nil {
		return f, nil
	}
	if shapesNode.Kind != yaml.MappingNode {
		return nil, &ParseError{File: name, Line: shapesNode.Line, Message: "shapes must be a mapping of shape id to shape"}
	}

	seen := make(map[core.ShapeID]bool)
	for i := 0; i+1 < len(shapesNode.Content); i += 2 {
		keyNode, valueNode := shapesNode.Content[i], shapesNode.Content[i+1]
		id, err := core.ParseShapeID(keyNode.Value)
		if err != nil {
			return nil, &ParseError{File: name, Line: keyNode.Line, Message: err.Error()}
		}
		if id.Member() != "" {
			return nil, &ParseError{File: name, Line: keyNode.Line, Message: fmt.Sprintf("shape id %q must not name a member", id)}
		}
		if seen[id] {
			return nil, &ParseError{File: name, Line: keyNode.Line, Message: fmt.Sprintf("shape %q is defined twice", id)}
		}
		seen[id] = true

		shape, err := parseShape(name, id, valueNode)
		if err != nil {
			return nil, err
		}
		f.Shapes = append(f.Shapes, shape)
	}
	return f, nil
}

func parseShape(file string, id core.ShapeID, node *yaml.Node) (core.Shape, error) {
	shape := core.Shape{ID: id}
	if node.Kind != yaml.MappingNode {
		return shape, &ParseError{File: file, Line: node.Line, Message: fmt.Sprintf("shape %q must be a mapping", id)}
	}
	where := fmt.Sprintf("shape %q", id)
	err := eachField(file, node, where, shapeFields, func(key string, value *yaml.Node) error {
		var err error
		switch key {
		case "type":
			var t string
			err = value.Decode(&t)
			shape.Type = core.ShapeType(t)
		case "tags":
			err = value.Decode(&shape.Tags)
		case "traits":
			err = value.Decode(&shape.Traits)
		case "members":
			shape.Members, err = parseMembers(file, id, value)
			return err
		}
		if err != nil {
			return &ParseError{File: file, Line: value.Line, Message: fmt.Sprintf("%s: %s: %v", where, key, err)}
		}
		return nil
	})
	if err != nil {
		return shape, err
	}
	if shape.Type == "" {
		return shape, &ParseError{File: file, Line: node.Line, Message: fmt.Sprintf("%s: type is required", where)}
	}
	return shape, nil
}

func parseMembers(file string, id core.ShapeID, node *yaml.Node) ([]core.Member, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{File: file, Line: node.Line, Message: fmt.Sprintf("shape %q: members must be a mapping", id)}
	}
	var members []core.Member
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		member := core.Member{Name: keyNode.Value}
		memberID := id.WithMember(member.Name)
		if member.Name == "" || strings.ContainsAny(member.Name, "#$") {
			return nil, &ParseError{File: file, Line: keyNode.Line, Message: fmt.Sprintf("shape %q: invalid member name %q", id, member.Name)}
		}

		// The short form "member: ns#Target" is accepted.
		if valueNode.Kind == yaml.ScalarNode {
			target, err := core.ParseShapeID(valueNode.Value)
			if err != nil {
				return nil, &ParseError{File: file, Line: valueNode.Line, Message: err.Error()}
			}
			member.Target = target
			members = append(members, member)
			continue
		}

		where := fmt.Sprintf("member %q", memberID)
		err := eachField(file, valueNode, where, memberFields, func(key string, value *yaml.Node) error {
			switch key {
			case "target":
				target, err := core.ParseShapeID(value.Value)
				if err != nil {
					return &ParseError{File: file, Line: value.Line, Message: err.Error()}
				}
				member.Target = target
			case "traits":
				if err := value.Decode(&member.Traits); err != nil {
					return &ParseError{File: file, Line: value.Line, Message: fmt.Sprintf("%s: traits: %v", where, err)}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if member.Target == "" {
			return nil, &ParseError{File: file, Line: valueNode.Line, Message: fmt.Sprintf("%s: target is required", where)}
		}
		members = append(members, member)
	}
	return members, nil
}

// eachField walks a mapping node, rejecting keys outside known.
func eachField(file string, node *yaml.Node, where string, known map[string]bool, fn func(key string, value *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return &ParseError{File: file, Line: node.Line, Message: where + " must be a mapping"}
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		if !known[keyNode.Value] {
			return &UnknownFieldError{File: file, Line: keyNode.Line, Field: keyNode.Value, Where: where}
		}
		if err := fn(keyNode.Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
