package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"geosql/pkg/codec"
	"geosql/pkg/dialect"
	"geosql/pkg/geom"
	"geosql/pkg/predicate"
	"geosql/pkg/schema"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func makeRootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "geosqlctl [command] (flags)",
		Short: "geosqlctl encodes, decodes and renders spatial SQL for MySQL, PostGIS and DuckDB.",
		Long: `geosqlctl encodes, decodes and renders spatial SQL for MySQL, PostGIS and DuckDB.

Typical usage:
    geosqlctl encode --geojson '{"type":"Point","coordinates":[1,2]}' --dialect postgres
    geosqlctl decode --dialect mysql --hex 000000000101000000000000000000F03F0000000000000040
    geosqlctl predicate distance --dialect mysql --column point --geojson '...' --max 10
    geosqlctl schema index --dialect postgres --table places --column location
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	command.AddCommand(makeEncodeCommand())
	command.AddCommand(makeDecodeCommand())
	command.AddCommand(makePredicateCommand())
	command.AddCommand(makeSchemaCommand())

	return command
}

type dialectFlags struct {
	name          string
	serverVersion string
}

func (f *dialectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "dialect", "", "target dialect ("+strings.Join(dialect.Supported(), ", ")+")")
	cmd.Flags().StringVar(&f.serverVersion, "server-version", "", "server version banner used to gate dialect functions")
}

func (f *dialectFlags) rule() (dialect.Rule, error) {
	if f.name == "" {
		return dialect.Rule{}, fmt.Errorf("--dialect is required")
	}

	rule, err := dialect.ForDialect(f.name)
	if err != nil {
		return dialect.Rule{}, err
	}
	if f.serverVersion != "" {
		return rule.WithServerVersion(f.serverVersion)
	}
	return rule, nil
}

// readGeoJSON reads the geometry from the flag value, or from stdin when it is "-".
func readGeoJSON(cmd *cobra.Command, value string) (geom.Geometry, error) {
	data := []byte(value)
	if value == "-" {
		var err error
		if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("--geojson is required")
	}
	return geom.UnmarshalGeoJSON(data)
}

func makeEncodeCommand() *cobra.Command {
	var (
		df      dialectFlags
		geojson string
	)
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		g, err := readGeoJSON(cmd, geojson)
		if err != nil {
			return err
		}

		text, err := codec.Encode(g)
		if err != nil {
			return err
		}
		if df.name != "" {
			rule, err := df.rule()
			if err != nil {
				return err
			}
			if text, err = codec.EncodeForWrite(g, rule); err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}
	command := &cobra.Command{
		Use:   "encode",
		Short: "Encode a GeoJSON geometry as WKT",
		Long:  `Encode a GeoJSON geometry as WKT. With --dialect, the value bound on write is printed instead.`,
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	df.register(command)
	command.Flags().StringVar(&geojson, "geojson", "", "GeoJSON geometry, or - to read stdin")
	return command
}

func makeDecodeCommand() *cobra.Command {
	var (
		df      dialectFlags
		payload string
		asJSON  bool
	)
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		rule, err := df.rule()
		if err != nil {
			return err
		}

		raw := []byte(strings.TrimSpace(payload))
		if rule.BinaryEncoding == dialect.Raw {
			if raw, err = hex.DecodeString(string(raw)); err != nil {
				return fmt.Errorf("--hex is not hex: %w", err)
			}
		}

		g, err := codec.Decode(raw, rule)
		if err != nil {
			return err
		}

		if asJSON {
			out, err := geom.MarshalGeoJSON(g)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		text, err := codec.Encode(g)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}
	command := &cobra.Command{
		Use:   "decode",
		Short: "Decode a driver geometry payload",
		Long:  `Decode a geometry payload as returned by the dialect's driver and print it as WKT.`,
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	df.register(command)
	command.Flags().StringVar(&payload, "hex", "", "payload as hex")
	command.Flags().BoolVar(&asJSON, "geojson", false, "print GeoJSON instead of WKT")
	return command
}

type predicateConfig struct {
	df          dialectFlags
	column      string
	geojson     string
	maxDistance float64
	sphere      bool
	excludeSelf bool
}

func (c *predicateConfig) register(cmd *cobra.Command) {
	c.df.register(cmd)
	cmd.Flags().StringVar(&c.column, "column", "", "spatial column")
	cmd.Flags().StringVar(&c.geojson, "geojson", "", "GeoJSON geometry, or - to read stdin")
}

func makePredicateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "predicate [command]",
		Short: "Render spatial predicate fragments",
	}
	command.AddCommand(makePredicateDistanceCommand())
	command.AddCommand(makePredicateValueCommand())
	command.AddCommand(makePredicateRelationCommand())
	return command
}

func writeFragments(cmd *cobra.Command, fragments ...predicate.Fragment) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(fragments)
}

func makePredicateDistanceCommand() *cobra.Command {
	var config predicateConfig
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		rule, err := config.df.rule()
		if err != nil {
			return err
		}
		g, err := readGeoJSON(cmd, config.geojson)
		if err != nil {
			return err
		}

		fragments, err := predicate.Distance(config.column, g, config.maxDistance, rule, config.sphere, config.excludeSelf)
		if err != nil {
			return err
		}
		return writeFragments(cmd, fragments...)
	}
	command := &cobra.Command{
		Use:   "distance",
		Short: "Render a maximum distance filter",
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	config.register(command)
	command.Flags().Float64Var(&config.maxDistance, "max", 0, "maximum distance")
	command.Flags().BoolVar(&config.sphere, "sphere", false, "use the spherical distance function")
	command.Flags().BoolVar(&config.excludeSelf, "exclude-self", false, "exclude rows at distance 0")
	return command
}

func makePredicateValueCommand() *cobra.Command {
	var config predicateConfig
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		rule, err := config.df.rule()
		if err != nil {
			return err
		}
		g, err := readGeoJSON(cmd, config.geojson)
		if err != nil {
			return err
		}

		fragment, err := predicate.DistanceValue(config.column, g, rule, config.sphere)
		if err != nil {
			return err
		}
		return writeFragments(cmd, fragment)
	}
	command := &cobra.Command{
		Use:   "value",
		Short: "Render a distance projection",
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	config.register(command)
	command.Flags().BoolVar(&config.sphere, "sphere", false, "use the spherical distance function")
	return command
}

func makePredicateRelationCommand() *cobra.Command {
	var config predicateConfig
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		relation, err := predicate.ParseRelation(args[0])
		if err != nil {
			return err
		}
		rule, err := config.df.rule()
		if err != nil {
			return err
		}
		g, err := readGeoJSON(cmd, config.geojson)
		if err != nil {
			return err
		}

		fragment, err := predicate.Topological(config.column, g, relation, rule)
		if err != nil {
			return err
		}
		return writeFragments(cmd, fragment)
	}

	names := make([]string, 0, len(predicate.Relations()))
	for _, r := range predicate.Relations() {
		names = append(names, strings.ToLower(r.String()))
	}
	command := &cobra.Command{
		Use:       "relation <" + strings.Join(names, "|") + ">",
		Short:     "Render a topological relation filter",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE:      runCmdFunc,
	}
	config.register(command)
	return command
}

func makeSchemaCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "schema [command]",
		Short: "Render spatial DDL statements",
	}
	command.AddCommand(makeSchemaColumnCommand())
	command.AddCommand(makeSchemaIndexCommand())
	command.AddCommand(makeSchemaExtensionCommand())
	return command
}

func makeSchemaColumnCommand() *cobra.Command {
	var (
		df     dialectFlags
		table  string
		column string
		kind   string
		srid   int
	)
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		rule, err := df.rule()
		if err != nil {
			return err
		}
		k, err := schema.ParseKind(kind)
		if err != nil {
			return err
		}

		stmt, err := schema.AddColumn(rule, table, column, k, srid)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
		return nil
	}
	command := &cobra.Command{
		Use:   "column",
		Short: "Render ALTER TABLE ... ADD COLUMN for a spatial column",
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	df.register(command)
	command.Flags().StringVar(&table, "table", "", "table name")
	command.Flags().StringVar(&column, "column", "", "column name")
	command.Flags().StringVar(&kind, "kind", "geometry", "geometry kind")
	command.Flags().IntVar(&srid, "srid", 0, "spatial reference id, 0 for none")
	return command
}

func makeSchemaIndexCommand() *cobra.Command {
	var (
		df     dialectFlags
		table  string
		column string
		index  string
		drop   bool
	)
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		rule, err := df.rule()
		if err != nil {
			return err
		}
		if index == "" {
			index = fmt.Sprintf("%s_%s_idx", table, column)
		}

		var stmt string
		if drop {
			stmt, err = schema.DropSpatialIndex(rule, table, index)
		} else {
			stmt, err = schema.SpatialIndex(rule, table, index, column)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
		return nil
	}
	command := &cobra.Command{
		Use:   "index",
		Short: "Render the statement creating or dropping a spatial index",
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	df.register(command)
	command.Flags().StringVar(&table, "table", "", "table name")
	command.Flags().StringVar(&column, "column", "", "column name")
	command.Flags().StringVar(&index, "name", "", "index name (default <table>_<column>_idx)")
	command.Flags().BoolVar(&drop, "drop", false, "drop the index instead")
	return command
}

func makeSchemaExtensionCommand() *cobra.Command {
	var (
		df      dialectFlags
		disable bool
	)
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		rule, err := df.rule()
		if err != nil {
			return err
		}

		var stmts []string
		if disable {
			stmts, err = schema.DisableExtension(rule)
		} else {
			stmts, err = schema.EnableExtension(rule)
		}
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			fmt.Fprintln(cmd.OutOrStdout(), stmt+";")
		}
		return nil
	}
	command := &cobra.Command{
		Use:   "extension",
		Short: "Render the statements enabling the spatial extension",
		Args:  cobra.NoArgs,
		RunE:  runCmdFunc,
	}
	df.register(command)
	command.Flags().BoolVar(&disable, "disable", false, "render the statements disabling it instead")
	return command
}
