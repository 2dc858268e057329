// Package sandbox 提供 Daytona 沙箱服务的 Go SDK，用于创建和管理远程隔离的开发沙箱，
// 并在沙箱内执行命令、运行代码、操作文件、Git 仓库和语言服务。
//
// # 核心概念
//
//   - Sandbox: 远程隔离的执行环境，状态包括 creating、started、stopped、error 等
//   - Toolbox: 沙箱内的 agent，提供进程、会话、文件系统、Git 和 LSP 接口
//   - Session: 长期运行的后台 shell，会话中的命令共享环境变量和工作目录
//
// # 快速开始
//
// 创建客户端并启动沙箱:
//
//	c, err := sandbox.NewClient(&sandbox.Config{
//	    APIKey: os.Getenv("DAYTONA_API_KEY"),
//	})
//
//	sb, err := c.Create(ctx, &sandbox.CreateParams{
//	    Language: sandbox.CodeLanguagePython,
//	    Timeout:  time.Minute,
//	})
//	defer c.Remove(context.Background(), sb, 0)
//
// Config 中未设置的字段依次从环境变量（DAYTONA_API_KEY、DAYTONA_SERVER_URL、DAYTONA_TARGET）
// 和配置文件（默认 ~/.daytona/config.toml）中读取。
//
// # 沙箱生命周期
//
// Client 提供沙箱的创建、获取、列表和删除:
//
//   - [Client.Create]: 创建沙箱并等待启动，启动失败时会删除该沙箱
//   - [Client.Get] / [Client.List]: 获取已有沙箱，代码语言由 code-toolbox-language 标签决定
//   - [Client.Start] / [Client.Stop] / [Client.Remove]: 生命周期操作
//
// Sandbox 实例提供:
//
//   - [Sandbox.Info]: 查询最新状态和资源
//   - [Sandbox.WaitForStart] / [Sandbox.WaitForStop]: 轮询等待状态变化
//   - [Sandbox.SetLabels] / [Sandbox.SetAutostopInterval]: 修改标签和自动停止时间
//   - [Sandbox.GetPreviewLink]: 生成端口预览链接
//
// # 命令与会话
//
// 通过 [Sandbox.Process] 执行命令:
//
//	resp, err := sb.Process().Exec(ctx, "ls -la", sandbox.WithCwd("/home/daytona"))
//	resp, err = sb.Process().CodeRun(ctx, `print("hello")`, nil)
//
// 会话命令可以异步执行，并持续读取其输出:
//
//	_ = sb.Process().CreateSession(ctx, "build")
//	cmd, err := sb.Process().ExecuteSessionCommand(ctx, "build", sandbox.SessionExecuteRequest{
//	    Command: "make all",
//	    Async:   true,
//	}, 0)
//	err = sb.Process().FollowSessionCommandLogs(ctx, "build", *cmd.CmdID, func(chunk string) {
//	    fmt.Print(chunk)
//	})
//
// 日志流在命令结束后不一定关闭，FollowSessionCommandLogs 在一段时间没有新输出时会查询命令退出码，
// 连续两次看到退出码后返回。
//
// # 文件、Git 与 LSP
//
//   - [Sandbox.FS]: 上传、下载、搜索、替换文件和修改权限，[FileSystem.UploadFiles] 并发上传
//   - [Sandbox.Git]: clone、add、commit、push、pull 和状态查询
//   - [Sandbox.CreateLspServer]: 启动语言服务，获取符号和补全
//
// # 错误处理
//
// API 返回的非 2xx 响应以 *[APIError] 返回，可用 [IsNotFound] 判断资源是否存在。
// 参数错误满足 errors.Is(err, [ErrInvalidParams])。
package sandbox
