// Package uvlink drives RizomUV standalone instances from Go over the
// application's local TCP control channel.
//
// uvlink locates the installed application, launches it with a free control
// port, waits until it answers and then sends it commands with parameter
// dictionaries: load a mesh from a file or from arrays, unfold, optimize,
// pack, save, quit. It supports Windows, macOS and Linux hosts.
//
// # Launching
//
//	link := uvlink.NewLink(uvlink.WithLogger(logger))
//	port, err := link.RunRizomUV(ctx)
//
// RunRizomUV resolves the installation (WithExecutable, then RIZOMUV_PATH,
// then the Windows registry or the macOS application bundles), picks the
// first free port of the configured range (or the one set with WithPort),
// starts the application with "-id <port>" in its own directory and dials
// until it answers a version query.
//
// An application started by other means is attached with Connect:
//
//	err := link.Connect(ctx, 5000)
//
// # Commands
//
//	err = link.Load(ctx, uvlink.Params{
//	    "File.Path":   "/path/to/mesh.fbx",
//	    "File.XYZUVW": true,
//	    "__Focus":     true,
//	})
//	err = link.Unfold(ctx, nil)
//	err = link.Pack(ctx, uvlink.Params{"Translate": true})
//	_, err = link.Save(ctx, uvlink.Params{"File.Path": "/tmp/out.fbx"})
//	err = link.Quit(ctx, nil)
//
// Errors reported by the application are *LinkError values; the link stays
// usable after one. Transport failures end the link with ErrClosed.
//
// # Fileless transfer
//
// Geometry can travel as flat arrays, keyed "Data.PolySizes",
// "Data.PolyXYZIDs", "Data.CoordsXYZ", "Data.PolyUVWIDs" and
// "Data.CoordsUVW". Mesh builds and validates these:
//
//	err = link.LoadMesh(ctx, uvlink.Cube(), nil)
//	err = link.Unfold(ctx, nil)
//	mesh, err := link.SaveMesh(ctx)
//
// # Several instances
//
// Links are independent; each RunRizomUV starts its own instance. Every
// instance takes a seat on a floating license.
//
// # Wire format
//
// Each message is a 4-byte big-endian length followed by a MessagePack map.
// Requests carry "command", "data" and "request_id"; responses echo
// "request_id" with either "result" or "error" ({"code", "message"}).
// Package emulator implements the application side for tests and
// development.
package uvlink
