package xerrors

var (
	// ErrInvalidInput 输入格式错误。
	ErrInvalidInput = New(ErrInvalidArg, 400002, "invalid input", "check your input parameters", nil)
	// ErrDimMismatch 维度不匹配.
	ErrDimMismatch = New(ErrInvalidArg, 400007, "dimension mismatch", "matrix or vector dimensions do not match", nil)
	// ErrInvalidConfig 配置错误。
	ErrInvalidConfig = New(ErrInvalidArg, 400005, "invalid config", "check solver and rounding settings", nil)

	// ErrInvalidInstance 实例数据非法（容量、尺寸或需求越界，ID 重复）。
	ErrInvalidInstance = New(ErrInvalidArg, 400101, "invalid instance", "capacity and sizes must be positive, demands non-negative, ids unique", nil)
	// ErrInfeasibleInstance 存在尺寸超过箱子容量的物品类型，不存在可行模式。
	ErrInfeasibleInstance = New(ErrInvalidArg, 400102, "infeasible instance", "an item type is larger than the bin capacity", nil)
	// ErrUnknownStrategy 未知的取整策略。
	ErrUnknownStrategy = New(ErrInvalidArg, 400103, "unknown rounding strategy", "supported strategies: glue, spectrum", nil)
	// ErrDatasetFormat 数据集文件格式错误。
	ErrDatasetFormat = New(ErrInvalidArg, 400104, "dataset format error", "instance file could not be parsed", nil)
	// ErrGridTooLarge 定价网格超出内存上限。
	ErrGridTooLarge = New(ErrInvalidArg, 400105, "pricing grid too large", "lower grid_decimals or raise max_grid_units", nil)
	// ErrUnknownHeuristic 未知的启发式算法。
	ErrUnknownHeuristic = New(ErrInvalidArg, 400106, "unknown heuristic", "supported heuristics: ff, bf, ffd, bfd, harmonic", nil)

	// ErrMathConvergence 数学计算未收敛。
	ErrMathConvergence = New(ErrInternal, 500002, "math convergence failed", "algorithm failed to converge", nil)
	// ErrUnboundedProblem 线性规划无界。
	ErrUnboundedProblem = New(ErrInternal, 500005, "unbounded problem", "linear programming problem is unbounded", nil)
	// ErrLPInfeasible 主问题线性规划不可行。
	ErrLPInfeasible = New(ErrInternal, 500101, "lp infeasible", "master covering LP reported infeasible", nil)
	// ErrLPSolver 线性规划求解器失败。
	ErrLPSolver = New(ErrInternal, 500102, "lp solver error", "external LP solver failed", nil)
	// ErrNonConvergence 列生成达到迭代上限仍未收敛（非致命）。
	ErrNonConvergence = New(ErrInternal, 500103, "column generation did not converge", "iteration cap reached, best-known fractional solution returned", nil)
	// ErrRoundingCoverageShortfall 取整结果未完全覆盖需求（非致命）。
	ErrRoundingCoverageShortfall = New(ErrInternal, 500104, "rounding coverage shortfall", "integral solution under-covers some item demand", nil)
)
