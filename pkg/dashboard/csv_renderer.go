package dashboard

import (
	"bytes"
	"encoding/csv"
	"strconv"

	log "github.com/sirupsen/logrus"
)

type Renderer interface {
	Render(summary Summary) (string, error)
}

type CsvRendererImpl struct {
}

func NewCsvRenderer() *CsvRendererImpl {
	return &CsvRendererImpl{}
}

// Render writes one row per team followed by a totals row.
func (r *CsvRendererImpl) Render(summary Summary) (string, error) {
	data := make([][]string, 0, len(summary.Teams)+2)
	data = append(data, []string{"Team", "Manager", "Department", "Allocated", "Used", "Remaining", "Expenses", "Utilisation %"})
	for _, team := range summary.Teams {
		data = append(data, []string{
			team.TeamName,
			team.Username,
			team.Department,
			team.Allocated.StringFixed(2),
			team.Used.StringFixed(2),
			team.Remaining.StringFixed(2),
			strconv.Itoa(team.ExpenseCount),
			team.Utilisation.StringFixed(2),
		})
	}

	expenses := 0
	for _, team := range summary.Teams {
		expenses += team.ExpenseCount
	}
	data = append(data, []string{
		"Total",
		"",
		"",
		summary.TotalAllocated.StringFixed(2),
		summary.TotalUsed.StringFixed(2),
		summary.TotalRemaining.StringFixed(2),
		strconv.Itoa(expenses),
		summary.Utilisation.StringFixed(2),
	})

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}
	return b.String(), nil
}
