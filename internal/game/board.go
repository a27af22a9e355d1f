package game

import (
	"math/rand/v2"
)

type CellType string

const (
	CellStart CellType = "start"
	CellEnd   CellType = "end"
	CellPath  CellType = "path"
	CellStar  CellType = "star"
	CellTrap  CellType = "trap"
)

// PathCell is one cell of the serpentine board walk. X and Y are grid
// coordinates for the client renderer; Id is the cell's index along the
// walk and the unit of player movement.
type PathCell struct {
	Id        int      `json:"id"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Type      CellType `json:"type"`
	Direction string   `json:"direction"`
}

type BoardConfig struct {
	Size  int
	Stars int
	Traps int
}

func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		Size:  7,
		Stars: 13,
		Traps: 16,
	}
}

// NewBoardPath walks a Size x Size grid in boustrophedon order: left to
// right on even rows, right to left on odd rows. The first cell is the
// start, the last the end, and Stars then Traps special cells are
// scattered over the interior. Interior excludes the two cells adjacent
// to each endpoint so a first roll can never land on a special cell.
func NewBoardPath(cfg BoardConfig) []PathCell {
	if cfg.Size < 2 {
		cfg = DefaultBoardConfig()
	}

	n := cfg.Size * cfg.Size
	path := make([]PathCell, 0, n)

	for row := 0; row < cfg.Size; row++ {
		for i := 0; i < cfg.Size; i++ {
			col := i
			dir := "right"
			if row%2 == 1 {
				col = cfg.Size - 1 - i
				dir = "left"
			}
			path = append(path, PathCell{
				Id:        len(path),
				X:         col,
				Y:         row,
				Type:      CellPath,
				Direction: dir,
			})
		}
	}

	path[0].Type = CellStart
	path[0].Direction = "start"
	path[n-1].Type = CellEnd
	path[n-1].Direction = "end"

	scatterSpecials(path, cfg)

	return path
}

func scatterSpecials(path []PathCell, cfg BoardConfig) {
	n := len(path)

	// Candidate indices: everything except the endpoints and their
	// immediate neighbors.
	candidates := make([]int, 0, n)
	for i := 2; i < n-2; i++ {
		candidates = append(candidates, i)
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	stars := min(cfg.Stars, len(candidates))
	for _, idx := range candidates[:stars] {
		path[idx].Type = CellStar
	}

	traps := min(cfg.Traps, len(candidates)-stars)
	for _, idx := range candidates[stars : stars+traps] {
		path[idx].Type = CellTrap
	}
}
