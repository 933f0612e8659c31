/*
Package cli provides helpers shared by the saturn commands.

Output Formatting:

Commands print results as text, JSON or CSV. Tabular results implement Table:

	format, err := cli.ParseOutputFormat(flagFormat)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, records); err != nil {
		return err
	}

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
