// Package codec moves forests in and out of the configuration store.
package codec

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/internal/domain/services"
	"ifsync/pkg/treepath"
)

// Codec converts between forests and store subtrees for one backend schema
type Codec struct {
	schema services.RelationSchema
	logger *logrus.Logger
}

var _ interfaces.ForestCodec = (*Codec)(nil)

func New(schema services.RelationSchema, logger *logrus.Logger) *Codec {
	return &Codec{schema: schema, logger: logger}
}

// ToForest emits one tree per root. Leaves become nodes labeled with their
// path relative to the root; nodes whose children are all numbered become
// arrays.
func (c *Codec) ToForest(store interfaces.ConfigStore, roots []treepath.Path) (*entities.Forest, error) {
	forest := entities.NewForest()
	for _, root := range roots {
		tree := forest.AddTree(root)
		if err := c.emit(store, tree, root, treepath.Path{}); err != nil {
			return nil, err
		}
	}
	if c.logger.IsLevelEnabled(logrus.DebugLevel) {
		if out, err := forest.Marshal(); err == nil {
			c.logger.WithField("forest", string(out)).Debug("Forest read from store")
		}
	}
	return forest, nil
}

func (c *Codec) emit(store interfaces.ConfigStore, tree *entities.Tree, root, rel treepath.Path) error {
	children, err := store.Match(root.Join(rel).Pattern().Child("*"))
	if err != nil {
		return domainErrors.NewOtherError("failed to read "+root.String(), err)
	}

	if len(rel) > 0 && allNumeric(children) {
		array := tree.Array(rel.String())
		for _, child := range children {
			value, _, err := store.Get(child)
			if err != nil {
				return domainErrors.NewOtherError("failed to read "+child.String(), err)
			}
			element := &entities.Element{Value: value}
			var nodes []entities.Node
			if err := c.leaves(store, child, treepath.Path{}, &nodes); err != nil {
				return err
			}
			element.Nodes = nodes
			array.Elements = append(array.Elements, element)
		}
		return nil
	}

	for _, child := range children {
		childRel, _ := child.TrimPrefix(root)
		value, _, err := store.Get(child)
		if err != nil {
			return domainErrors.NewOtherError("failed to read "+child.String(), err)
		}
		grandchildren, err := store.Match(child.Pattern().Child("*"))
		if err != nil {
			return domainErrors.NewOtherError("failed to read "+child.String(), err)
		}
		if len(grandchildren) == 0 || value != "" {
			label := childRel.String()
			if len(childRel) == 1 {
				if reserved, ok := c.schema.ReservedLabel(childRel.Label()); ok {
					label = reserved
				}
			}
			tree.Set(label, value)
		}
		if len(grandchildren) > 0 {
			if err := c.emit(store, tree, root, childRel); err != nil {
				return err
			}
		}
	}
	return nil
}

// leaves collects every valued or childless node below base, labeled relative to base
func (c *Codec) leaves(store interfaces.ConfigStore, base, rel treepath.Path, out *[]entities.Node) error {
	children, err := store.Match(base.Join(rel).Pattern().Child("*"))
	if err != nil {
		return domainErrors.NewOtherError("failed to read "+base.String(), err)
	}
	for _, child := range children {
		childRel, _ := child.TrimPrefix(base)
		value, _, err := store.Get(child)
		if err != nil {
			return domainErrors.NewOtherError("failed to read "+child.String(), err)
		}
		sub, err := store.Match(child.Pattern().Child("*"))
		if err != nil {
			return domainErrors.NewOtherError("failed to read "+child.String(), err)
		}
		if len(sub) == 0 || value != "" {
			*out = append(*out, entities.Node{Label: childRel.String(), Value: value})
		}
		if len(sub) > 0 {
			if err := c.leaves(store, base, childRel, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func allNumeric(paths []treepath.Path) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if _, err := strconv.Atoi(p.Label()); err != nil {
			return false
		}
	}
	return true
}

// ToStore writes every tree of the forest below its anchor. Array elements
// of a tree get ascending indices starting one above the highest index
// already present under any array of that tree; the counter carries on
// across arrays. Reserved relation nodes are written under the schema's
// label, if it has one, and returned.
func (c *Codec) ToStore(store interfaces.ConfigStore, forest *entities.Forest) ([]entities.Relation, error) {
	if forest == nil {
		return nil, domainErrors.NewInternalError("malformed forest: nil document", nil)
	}
	if err := forest.Validate(); err != nil {
		return nil, err
	}

	var relations []entities.Relation
	for _, tree := range forest.Trees {
		anchor, err := tree.Anchor()
		if err != nil {
			return relations, domainErrors.NewInternalError("malformed forest", err)
		}
		if _, ok, err := store.Get(anchor); err != nil {
			return relations, domainErrors.NewOtherError("failed to read "+anchor.String(), err)
		} else if !ok {
			if err := store.Set(anchor, ""); err != nil {
				return relations, err
			}
		}

		for _, n := range tree.Nodes {
			if entities.IsRelationLabel(n.Label) {
				rel := entities.Relation{Tree: tree.Path, Label: n.Label, Target: n.Value}
				if label, ok := c.schema.StoreLabel(n.Label); ok {
					rel.StoreLabel = label
					if err := store.Set(anchor.Child(label), n.Value); err != nil {
						return relations, err
					}
				}
				relations = append(relations, rel)
				continue
			}
			if err := c.set(store, anchor, n.Label, n.Value); err != nil {
				return relations, err
			}
		}

		next, err := c.nextIndex(store, anchor, tree.Arrays)
		if err != nil {
			return relations, err
		}
		for _, array := range tree.Arrays {
			label, err := treepath.Parse(array.Label)
			if err != nil {
				return relations, domainErrors.NewInternalError("malformed forest", err)
			}
			base := anchor.Join(label)
			if _, ok, err := store.Get(base); err != nil {
				return relations, domainErrors.NewOtherError("failed to read "+base.String(), err)
			} else if !ok {
				if err := store.Set(base, ""); err != nil {
					return relations, err
				}
			}
			for _, element := range array.Elements {
				elementPath := base.Child(strconv.Itoa(next))
				next++
				if err := store.Set(elementPath, element.Value); err != nil {
					return relations, err
				}
				for _, n := range element.Nodes {
					if err := c.set(store, elementPath, n.Label, n.Value); err != nil {
						return relations, err
					}
				}
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"trees":     len(forest.Trees),
		"relations": len(relations),
	}).Debug("Forest written to store")

	return relations, nil
}

func (c *Codec) set(store interfaces.ConfigStore, base treepath.Path, label, value string) error {
	rel, err := treepath.Parse(label)
	if err != nil || len(rel) == 0 {
		return domainErrors.NewInternalError("malformed forest: bad node label "+strconv.Quote(label), err)
	}
	return store.Set(base.Join(rel), value)
}

// nextIndex returns one above the highest numbered child under any array base of the tree
func (c *Codec) nextIndex(store interfaces.ConfigStore, anchor treepath.Path, arrays []*entities.Array) (int, error) {
	highest := 0
	for _, array := range arrays {
		label, err := treepath.Parse(array.Label)
		if err != nil {
			return 0, domainErrors.NewInternalError("malformed forest", err)
		}
		children, err := store.Match(anchor.Join(label).Pattern().Child("*"))
		if err != nil {
			return 0, domainErrors.NewOtherError("failed to read "+anchor.String(), err)
		}
		for _, child := range children {
			if idx, err := strconv.Atoi(child.Label()); err == nil && idx > highest {
				highest = idx
			}
		}
	}
	return highest + 1, nil
}
