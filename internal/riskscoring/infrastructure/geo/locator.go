// Package geo 基于配置区县表的告警定位
package geo

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// District 区县坐标
type District struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// TableLocator 依次使用供应商坐标、请求区县、随机兜底区县
type TableLocator struct {
	byName    map[string]District
	districts []District
	fallback  []District

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTableLocator 创建定位器；fallbackNames 中不在表内的名称被忽略，为空时退化为整张表
func NewTableLocator(districts []District, fallbackNames []string, seed int64) *TableLocator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	l := &TableLocator{
		byName:    make(map[string]District, len(districts)),
		districts: districts,
		rng:       rand.New(rand.NewSource(seed)),
	}
	for _, d := range districts {
		l.byName[normalize(d.Name)] = d
	}
	for _, name := range fallbackNames {
		if d, ok := l.byName[normalize(name)]; ok {
			l.fallback = append(l.fallback, d)
		}
	}
	if len(l.fallback) == 0 {
		l.fallback = districts
	}
	return l
}

func (l *TableLocator) Locate(vendor *domain.Vendor, district string) domain.Location {
	if vendor != nil && vendor.HasCoordinates() {
		name := district
		if name == "" {
			name = l.nearest(*vendor.Latitude, *vendor.Longitude)
		}
		return domain.Location{District: name, Latitude: *vendor.Latitude, Longitude: *vendor.Longitude}
	}
	if d, ok := l.byName[normalize(district)]; ok && district != "" {
		return domain.Location{District: d.Name, Latitude: d.Latitude, Longitude: d.Longitude}
	}
	if len(l.fallback) == 0 {
		return domain.Location{District: district}
	}

	l.mu.Lock()
	d := l.fallback[l.rng.Intn(len(l.fallback))]
	l.mu.Unlock()
	return domain.Location{District: d.Name, Latitude: d.Latitude, Longitude: d.Longitude}
}

// nearest 平面近似距离，区县尺度足够
func (l *TableLocator) nearest(lat, lng float64) string {
	best, bestDist := "", -1.0
	for _, d := range l.districts {
		dl, dg := d.Latitude-lat, d.Longitude-lng
		dist := dl*dl + dg*dg
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d.Name, dist
		}
	}
	return best
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
