// Package rowsync 管理一个 table 状态机与一组动态 row 状态机的生命周期
//
// supervisor 是一个 Actor，串行处理所有事件，独占 row 注册表：
//
//	loadingTableMachine → loadingRowsMachines → startingTableMachine → executingRows → failed | done
//
// 运行流程：
//
//  1. Table Loader 产出 table 定义，spawn table
//  2. Rows Loader 产出全部 row 定义（通常从持久化快照恢复），逐个 spawn 并登记为未完成
//  3. 向 table 发送 [Init]，进入 executingRows
//  4. 收齐各 row 执行 Start 之后的快照，按 id 顺序向 table 广播 [RowInitialized]，之后才处理变更事件
//  5. 路由 [SaveRow]、[DeleteRow]、[RowFinished]、[CreateRow]、[Stop]
//  6. 离开 executingRows 或加载失败时，停止 table 与所有已登记的 row
//
// 完成检测：只有 [RowFinished] 使未完成集合由非空变为空时，才向 table 发送一次 [AllRowsFinished]。
// [DeleteRow] 同样会把 id 移出未完成集合，但从不触发 [AllRowsFinished]。
// 因失败被监督策略停止的 row 也会被移除，table 失败则整个运行失败。
//
// 使用示例：
//
//	db, err := rowsync.New(
//	    rowsync.StaticTable(tableDef),
//	    rowsync.NewStoreRowsLoader(st, rowFactory),
//	    st,
//	    rowsync.WithTimeout(30*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := db.Start(ctx); err != nil {
//	    return err
//	}
package rowsync
