package menu

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"canteen/pkg/domain/model"
)

var (
	ErrEntryNotFound = errors.New("menu entry not found")
	ErrDayNotFound   = errors.New("no menu for this day")
)

const (
	AfternoonTitle = "Afternoon Break"
	BreakfastTitle = "Breakfast"
)

//go:embed menu.json
var defaultMenu []byte

type Day struct {
	Day       string           `json:"day"`
	Afternoon []model.CartItem `json:"afternoon"`
	Breakfast []model.CartItem `json:"breakfast"`
}

type MenuJSON struct {
	Days []Day `json:"days"`
}

type Menu struct {
	days []Day
}

func Default() (*Menu, error) {
	return parse(defaultMenu)
}

// Load reads a menu file. An empty path means the built-in weekday menu.
func Load(filePath string) (*Menu, error) {
	if filePath == "" {
		return Default()
	}
	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return parse(file)
}

func parse(raw []byte) (*Menu, error) {
	var data MenuJSON
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	for _, day := range data.Days {
		for _, section := range [][]model.CartItem{day.Afternoon, day.Breakfast} {
			for _, item := range section {
				if _, err := model.ParsePrice(item.Price); err != nil {
					return nil, err
				}
			}
		}
	}
	return &Menu{days: data.Days}, nil
}

func (m *Menu) Days() []Day {
	out := make([]Day, len(m.days))
	copy(out, m.days)
	return out
}

func (m *Menu) Day(name string) (Day, error) {
	for _, day := range m.days {
		if strings.EqualFold(day.Day, name) {
			return day, nil
		}
	}
	return Day{}, ErrDayNotFound
}

// Find returns the first entry with the given ID in weekday order.
func (m *Menu) Find(id int) (model.CartItem, error) {
	for _, day := range m.days {
		for _, section := range [][]model.CartItem{day.Afternoon, day.Breakfast} {
			for _, item := range section {
				if item.ID == id {
					return item, nil
				}
			}
		}
	}
	return model.CartItem{}, ErrEntryNotFound
}
