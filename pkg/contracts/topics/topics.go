package topics

const (
	// Verificação de rebate
	ScenarioFinished = "rebate_scenario_finished"
	MismatchFound    = "rebate_reconciliation_mismatch"

	// DLQs
	ReportDLQ = "rebate_report_dlq"
)
