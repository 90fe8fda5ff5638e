package config

type WorkerKeyStruct struct {
	PredictionLogQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PredictionLogQueue: "persist_prediction_logs_queue",
}
