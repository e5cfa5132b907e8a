package geo

import "math"

// LngLat 多边形顶点，按 GeoJSON 习惯 [lng, lat] 存储
type LngLat [2]float64

// Ring 闭合多边形边界，首点在末尾重复
type Ring []LngLat

// BBox 外接矩形
type BBox struct {
	MinLng, MinLat, MaxLng, MaxLat float64
}

// Contains 使用 even-odd 射线法判断点是否在多边形内。
// 点恰好落在边上时结果取决于浮点运算，不保证稳定。
func (r Ring) Contains(p Point) bool {
	n := len(r)
	if n < 3 {
		return false
	}

	inside := false
	x, y := p.Lng, p.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Bounds 计算外接矩形，空环返回零值
func (r Ring) Bounds() BBox {
	if len(r) == 0 {
		return BBox{}
	}
	b := BBox{
		MinLng: math.Inf(1), MinLat: math.Inf(1),
		MaxLng: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	for _, v := range r {
		b.MinLng = math.Min(b.MinLng, v[0])
		b.MaxLng = math.Max(b.MaxLng, v[0])
		b.MinLat = math.Min(b.MinLat, v[1])
		b.MaxLat = math.Max(b.MaxLat, v[1])
	}
	return b
}

// Closed 是否首尾相接
func (r Ring) Closed() bool {
	return len(r) > 0 && r[0] == r[len(r)-1]
}

func (b BBox) contains(p Point) bool {
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng && p.Lat >= b.MinLat && p.Lat <= b.MaxLat
}
