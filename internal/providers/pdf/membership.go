package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateMembershipReport(ctx context.Context, data MembershipReportData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, data.PlatformName, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(10,
		text.NewCol(12, "Membership report", props.Text{
			Size:  14,
			Align: align.Left,
		}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Organization: "+data.OrgName, props.Text{Top: 0}),
			text.New("Slug: "+data.OrgSlug, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 0, Align: align.Right}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(8,
		text.NewCol(4, "Email", props.Text{Style: fontstyle.Bold}),
		text.NewCol(3, "Name", props.Text{Style: fontstyle.Bold}),
		text.NewCol(3, "Roles", props.Text{Style: fontstyle.Bold}),
		text.NewCol(2, "Joined", props.Text{Style: fontstyle.Bold}),
	)

	for _, member := range data.Members {
		m.AddRow(7,
			text.NewCol(4, member.Email),
			text.NewCol(3, member.Name),
			text.NewCol(3, member.Roles),
			text.NewCol(2, member.JoinedAt),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
