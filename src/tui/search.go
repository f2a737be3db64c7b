package tui

import (
	"strings"
)

// applyFilter shows the items matching the search query.
func (m *MainModel) applyFilter() {
	filtered := m.items
	if m.searchQuery != "" {
		filtered = nil
		query := strings.ToLower(m.searchQuery)
		for _, item := range m.items {
			if strings.Contains(strings.ToLower(item.Stage), query) ||
				strings.Contains(strings.ToLower(item.Action), query) ||
				strings.Contains(strings.ToLower(item.Status), query) ||
				strings.Contains(strings.ToLower(item.Message), query) {
				filtered = append(filtered, item)
			}
		}
	}

	m.listView.SetItems(filtered)
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}
