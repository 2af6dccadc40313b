// pkg/entity/entity.go
package entity

import (
	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// ID is a unique identifier for an entity
type ID uint64

// Entity is the base interface for all simulated objects
type Entity interface {
	GetID() ID
	GetPosition() mgl64.Vec3
	Update(deltaTime float64) error
}

// BaseEntity contains common functionality for all entities. The embedded
// ecs.BasicEntity supplies the unique id shared with the simulation world.
type BaseEntity struct {
	ecs.BasicEntity
	Active bool
}

// NewBaseEntity allocates a fresh, active entity id
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		BasicEntity: ecs.NewBasic(),
		Active:      true,
	}
}

// GetID returns the entity's unique identifier
func (e *BaseEntity) GetID() ID {
	return ID(e.BasicEntity.ID())
}
