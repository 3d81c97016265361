/*
Package cli provides helpers shared by the cadence commands.

Output Formatting:

Command results are written in text, JSON or CSV. Values that implement
Table are rendered as aligned columns in text mode and as rows in CSV
mode; anything else is printed with %v or encoded as JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Exit Codes:

Commands return errors wrapped in ExitError to select the process exit
status; see ExitCode.

Progress Reporting:

Batch operations, such as triggering every known customer, report
progress on stderr:

	progress := cli.NewBatchProgress(os.Stderr, len(ids))
	for _, id := range ids {
		res, err := process(id)
		// ...
		progress.Step(string(res.Status))
	}
	progress.Done()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
