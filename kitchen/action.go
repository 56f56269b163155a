package kitchen

import "fmt"

type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	ActionStay
	ActionInteract
)

const NumActions = 6

var Actions = []Action{ActionUp, ActionDown, ActionLeft, ActionRight, ActionStay, ActionInteract}

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	case ActionStay:
		return "stay"
	case ActionInteract:
		return "interact"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a Action) IsMove() bool {
	switch a {
	case ActionUp, ActionDown, ActionLeft, ActionRight:
		return true
	}
	return false
}

type JointAction [2]Action

type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

const NumDirections = 4

func (d Direction) Delta() (int, int) {
	switch d {
	case DirUp:
		return -1, 0
	case DirDown:
		return 1, 0
	case DirLeft:
		return 0, -1
	}
	return 0, 1
}

func (d Direction) Action() Action {
	switch d {
	case DirUp:
		return ActionUp
	case DirDown:
		return ActionDown
	case DirLeft:
		return ActionLeft
	}
	return ActionRight
}

// MoveDirection は移動アクションに対応する向き。移動アクション以外はfalse。
func (a Action) MoveDirection() (Direction, bool) {
	switch a {
	case ActionUp:
		return DirUp, true
	case ActionDown:
		return DirDown, true
	case ActionLeft:
		return DirLeft, true
	case ActionRight:
		return DirRight, true
	}
	return DirUp, false
}
