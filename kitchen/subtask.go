package kitchen

import "fmt"

/*
Subtask は片方のプレイヤーが今遂行している意味的なサブゴール。
サブタスクはインタラクトで完了する為、遷移はインタラクト時
(とエピソード開始時)にのみ起こる。
*/
type Subtask int

const (
	SubtaskGetOnionFromDispenser Subtask = iota
	SubtaskPickupOnionFromCounter
	SubtaskPutOnionInPot
	SubtaskPutOnionCloser
	SubtaskGetPlateFromDishRack
	SubtaskPickupPlateFromCounter
	SubtaskPutPlateCloser
	SubtaskGetSoup
	SubtaskPickupSoupFromCounter
	SubtaskPutSoupCloser
	SubtaskServeSoup
	SubtaskUnknown
)

const NumSubtasks = 12

var Subtasks = []Subtask{
	SubtaskGetOnionFromDispenser,
	SubtaskPickupOnionFromCounter,
	SubtaskPutOnionInPot,
	SubtaskPutOnionCloser,
	SubtaskGetPlateFromDishRack,
	SubtaskPickupPlateFromCounter,
	SubtaskPutPlateCloser,
	SubtaskGetSoup,
	SubtaskPickupSoupFromCounter,
	SubtaskPutSoupCloser,
	SubtaskServeSoup,
	SubtaskUnknown,
}

func (s Subtask) String() string {
	switch s {
	case SubtaskGetOnionFromDispenser:
		return "get_onion_from_dispenser"
	case SubtaskPickupOnionFromCounter:
		return "pickup_onion_from_counter"
	case SubtaskPutOnionInPot:
		return "put_onion_in_pot"
	case SubtaskPutOnionCloser:
		return "put_onion_closer"
	case SubtaskGetPlateFromDishRack:
		return "get_plate_from_dish_rack"
	case SubtaskPickupPlateFromCounter:
		return "pickup_plate_from_counter"
	case SubtaskPutPlateCloser:
		return "put_plate_closer"
	case SubtaskGetSoup:
		return "get_soup"
	case SubtaskPickupSoupFromCounter:
		return "pickup_soup_from_counter"
	case SubtaskPutSoupCloser:
		return "put_soup_closer"
	case SubtaskServeSoup:
		return "serve_soup"
	case SubtaskUnknown:
		return "unknown"
	}
	return fmt.Sprintf("subtask(%d)", int(s))
}
