package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"exprview/app"
	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal/config"
	"exprview/internal/container"

	"github.com/urfave/cli/v2"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Build a matrix from units and print its top rows",
		Description: "Without --unit the available units are listed. Each --unit\n" +
			"major/medium/minor becomes one group holding the unit's samples and\n" +
			"the matching control samples.",
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Unit as major/medium/minor, one per group"},
			&cli.StringFlag{Name: "value-type", Value: "folds", Usage: "absolute or folds"},
			&cli.StringFlag{Name: "test", Usage: "Add a two-group test over the first two groups: ttest, utest or meandifference"},
			&cli.IntFlag{Name: "sort", Value: -1, Usage: "Sort by this column index"},
			&cli.BoolFlag{Name: "asc", Usage: "Sort ascending"},
			&cli.IntFlag{Name: "rows", Value: 20, Usage: "Number of rows to print"},
			&cli.StringFlag{Name: "export", Usage: "Also write the view to this .xlsx file"},
			&cli.BoolFlag{Name: "individual", Usage: "Export one column per sample"},
		}, dataFlags...),
		Action: runInspect,
	}
}

func runInspect(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Snapshots.Driver = config.SnapshotsNone
	scratch, err := os.MkdirTemp("", "exprview-inspect-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)
	cfg.Downloads.Driver = config.DownloadsLocal
	cfg.Downloads.Directory = scratch

	appContainer, err := container.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer appContainer.Shutdown(c.Context)
	svc := appContainer.Service

	units, err := svc.Units(c.Context, nil)
	if err != nil {
		return err
	}
	if len(c.StringSlice("unit")) == 0 {
		return printUnits(os.Stdout, units)
	}

	groups, err := unitGroups(units, c.StringSlice("unit"))
	if err != nil {
		return err
	}
	id := svc.OpenSession()
	defer svc.CloseSession(id)

	if _, err := svc.LoadMatrix(c.Context, id, app.LoadRequest{Groups: groups, ValueType: c.String("value-type")}); err != nil {
		return err
	}
	if kind := c.String("test"); kind != "" {
		if _, err := svc.AddTwoGroupTest(id, kind, 0, 1); err != nil {
			return err
		}
	}

	var key matrix.SortKey
	if col := c.Int("sort"); col >= 0 {
		key = matrix.MatrixColumn(col)
	}
	rows, _, err := svc.MatrixRows(id, 0, c.Int("rows"), key, c.Bool("asc"))
	if err != nil {
		return err
	}
	report, err := svc.Report(id, false)
	if err != nil {
		return err
	}
	os.Stdout.Write(report)
	fmt.Println()
	info, err := svc.Info(id)
	if err != nil {
		return err
	}
	if err := printRows(os.Stdout, info, rows); err != nil {
		return err
	}

	if out := c.String("export"); out != "" {
		return exportView(c, svc, id, out)
	}
	return nil
}

// unitGroups turns major/medium/minor triples into group requests. Control
// samples of the same major and minor are added to each group.
func unitGroups(units []sample.Unit, specs []string) ([]app.GroupRequest, error) {
	byTriple := make(map[string]sample.Unit, len(units))
	for _, u := range units {
		byTriple[u.Triple.String()] = u
	}
	var groups []app.GroupRequest
	for _, spec := range specs {
		u, ok := byTriple[spec]
		if !ok {
			return nil, fmt.Errorf("unknown unit %q", spec)
		}
		var ids []string
		for _, s := range u.Samples() {
			ids = append(ids, s.ID)
		}
		for _, other := range units {
			if other.IsControl() && other.Major == u.Major && other.Minor == u.Minor && other.Medium != u.Medium {
				for _, s := range other.Control {
					ids = append(ids, s.ID)
				}
			}
		}
		groups = append(groups, app.GroupRequest{
			Name:           strings.Join([]string{u.Major, u.Medium, u.Minor}, " "),
			SampleIDs:      ids,
			RequireSamples: true,
		})
	}
	return groups, nil
}

func printUnits(w io.Writer, units []sample.Unit) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tTREATED\tCONTROL")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", u.Triple, u.TreatedCount(), u.ControlCount())
	}
	return tw.Flush()
}

func printRows(w io.Writer, info matrix.ManagedMatrixInfo, rows []matrix.ExpressionRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	header := []string{"Probe", "Symbol"}
	for _, col := range info.Columns {
		header = append(header, col.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, r := range rows {
		cells := []string{r.Probe, strings.Join(r.GeneSymbols, ",")}
		for i := range info.Columns {
			v := r.Value(i)
			if !v.Present {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, fmt.Sprintf("%.4g", v.Value))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func exportView(c *cli.Context, svc *app.MatrixService, id core.SessionID, path string) error {
	d, err := svc.PrepareDownload(c.Context, id, c.Bool("individual"))
	if err != nil {
		return err
	}
	rc, _, err := svc.OpenDownload(c.Context, d.ID.String())
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
