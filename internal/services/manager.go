package services

// ServiceManager hands the HTTP layer the services it routes to.
type ServiceManager interface {
	Import() ImportService
	Benchmark() BenchmarkService
}

type serviceManager struct {
	importService    ImportService
	benchmarkService BenchmarkService
}

func NewServiceManager(importService ImportService, benchmarkService BenchmarkService) ServiceManager {
	return &serviceManager{
		importService:    importService,
		benchmarkService: benchmarkService,
	}
}

func (m *serviceManager) Import() ImportService       { return m.importService }
func (m *serviceManager) Benchmark() BenchmarkService { return m.benchmarkService }
