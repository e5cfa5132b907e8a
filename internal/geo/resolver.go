package geo

import (
	"math"
	"sort"
)

const (
	// 网格边长（度），约 1km
	defaultCellSize = 0.01
	// 外接矩形覆盖超过这么多格子的区域不入网格，每次都参与检测
	maxCellsPerZone = 4096
)

// ZoneShape 参与解析的区域几何
type ZoneShape struct {
	ID   int64
	Ring Ring
}

type cellKey struct {
	x, y int64
}

// Resolver 根据坐标找到所在区域。
//
// 区域按传入顺序参与匹配，多个区域重叠时第一个命中的胜出。网格索引只用来
// 预筛候选，候选依然按原顺序检测，所以结果与逐个扫描完全一致。
type Resolver struct {
	zones    []ZoneShape
	boxes    []BBox
	cells    map[cellKey][]int
	large    []int
	cellSize float64
}

// NewResolver zones 的顺序即匹配顺序，调用方负责给出稳定顺序（按 id 升序）
func NewResolver(zones []ZoneShape) *Resolver {
	r := &Resolver{
		zones:    zones,
		boxes:    make([]BBox, len(zones)),
		cells:    make(map[cellKey][]int),
		cellSize: defaultCellSize,
	}

	for i, z := range zones {
		b := z.Ring.Bounds()
		r.boxes[i] = b
		if len(z.Ring) < 3 {
			continue
		}

		x0, y0 := r.cell(b.MinLng), r.cell(b.MinLat)
		x1, y1 := r.cell(b.MaxLng), r.cell(b.MaxLat)
		if (x1-x0+1)*(y1-y0+1) > maxCellsPerZone {
			r.large = append(r.large, i)
			continue
		}
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				k := cellKey{x, y}
				r.cells[k] = append(r.cells[k], i)
			}
		}
	}

	return r
}

func (r *Resolver) cell(v float64) int64 {
	return int64(math.Floor(v / r.cellSize))
}

// candidates 返回可能包含该点的区域下标，升序
func (r *Resolver) candidates(p Point) []int {
	inCell := r.cells[cellKey{r.cell(p.Lng), r.cell(p.Lat)}]
	if len(r.large) == 0 {
		return inCell
	}

	out := make([]int, 0, len(inCell)+len(r.large))
	out = append(out, inCell...)
	out = append(out, r.large...)
	sort.Ints(out)
	return out
}

// Resolve 返回包含该点的第一个区域；不在任何区域内返回 false，这是正常结果
func (r *Resolver) Resolve(p Point) (int64, bool) {
	for _, i := range r.candidates(p) {
		if !r.boxes[i].contains(p) {
			continue
		}
		if r.zones[i].Ring.Contains(p) {
			return r.zones[i].ID, true
		}
	}
	return 0, false
}

// Len 区域数量
func (r *Resolver) Len() int {
	return len(r.zones)
}
